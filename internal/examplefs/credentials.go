package examplefs

// CredentialStore is a fixed, in-memory access-key/secret table. It
// satisfies both sigv4.CredentialStore and sigv2.CredentialStore, since
// both engines need nothing more than the GetSecretKey lookup.
type CredentialStore map[string]string

// GetSecretKey implements sigv4.CredentialStore and sigv2.CredentialStore.
func (c CredentialStore) GetSecretKey(accessKeyID string) (string, bool) {
	secret, ok := c[accessKeyID]
	return secret, ok
}
