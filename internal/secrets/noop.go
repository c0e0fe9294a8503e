package secrets

// NoopStore is the store for platforms without a credential store. Every
// operation fails with ErrNotSupported.
type NoopStore struct{}

func (NoopStore) Get(string) (string, error) { return "", ErrNotSupported }
func (NoopStore) Set(string, string) error   { return ErrNotSupported }
func (NoopStore) Delete(string) error        { return ErrNotSupported }
func (NoopStore) IsSupported() bool          { return false }
