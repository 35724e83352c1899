package testing

// WithFiles pre-populates the mock filesystem with files.
// Keys are paths, values are file contents.
func WithFiles(client *MockClient, files map[string]string) {
	for path, content := range files {
		_ = client.GetFS().WriteFile(path, []byte(content))
	}
}

// WithDirs pre-populates the mock filesystem with directories.
func WithDirs(client *MockClient, dirs []string) {
	for _, dir := range dirs {
		_ = client.GetFS().MkdirAll(dir)
	}
}

// WithKeyPair pre-populates a host with an existing key pair of the given
// type, as if a previous run (or the operator) had already generated one.
func WithKeyPair(client *MockClient, keyType string) {
	sshDir := client.Home() + "/.ssh"
	priv := sshDir + "/id_" + keyType
	_ = client.GetFS().MkdirAll(sshDir)
	_ = client.GetFS().WriteFile(priv, []byte("-----PREEXISTING PRIVATE KEY-----"))
	_ = client.GetFS().WriteFile(priv+".pub", []byte(PublicKeyFor(keyType, client.GetUser(), client.GetHost())+"\n"))
}
