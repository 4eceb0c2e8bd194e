package config

import "fmt"

// ResolveAccount resolves the account a one-shot command should talk
// to. A non-zero port override wins outright; otherwise the named (or
// default) account comes from the environment or the keyring.
func ResolveAccount(name string, portOverride int) (Account, error) {
	if portOverride != 0 {
		if portOverride < 0 || portOverride > 65535 {
			return Account{}, fmt.Errorf("port %d out of range", portOverride)
		}
		accountName := name
		if accountName == "" {
			accountName = defaultAccount
		}
		return Account{Name: accountName, Port: portOverride}, nil
	}
	return LoadAccount(name)
}
