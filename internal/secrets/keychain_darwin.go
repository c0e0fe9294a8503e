//go:build darwin

package secrets

import (
	"errors"

	"github.com/keybase/go-keychain"
)

func init() {
	platformStore = &KeychainStore{Service: ServiceName}
}

// KeychainStore keeps generic passwords in the macOS Keychain under Service.
type KeychainStore struct {
	Service string
}

func (k *KeychainStore) item(account string) keychain.Item {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(k.Service)
	item.SetAccount(account)
	return item
}

func (k *KeychainStore) Get(account string) (string, error) {
	query := k.item(account)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if errors.Is(err, keychain.ErrorItemNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNotFound
	}
	return string(results[0].Data), nil
}

func (k *KeychainStore) Set(account, secret string) error {
	item := k.item(account)
	item.SetLabel(k.Service + " - " + account)
	item.SetData([]byte(secret))
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)

	err := keychain.AddItem(item)
	if !errors.Is(err, keychain.ErrorDuplicateItem) {
		return err
	}

	update := keychain.NewItem()
	update.SetData([]byte(secret))
	return keychain.UpdateItem(k.item(account), update)
}

func (k *KeychainStore) Delete(account string) error {
	err := keychain.DeleteItem(k.item(account))
	if errors.Is(err, keychain.ErrorItemNotFound) {
		return ErrNotFound
	}
	return err
}

func (k *KeychainStore) IsSupported() bool {
	return true
}
