//go:build !darwin

package secrets

func init() {
	platformStore = NoopStore{}
}
