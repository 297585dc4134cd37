// keys2vault imports wallet keys from a .env-style file into the encrypted
// key vault. Each NAME=<base58 key> line becomes a vault entry referenced
// from config as "vault:NAME".
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/skrlabs/skrswap/internal/wallet"
	"github.com/skrlabs/skrswap/pkg/keyvault"
)

func main() {
	var (
		inPath    = flag.String("in", "keys.env", "input file with NAME=<base58 key> lines")
		vaultPath = flag.String("vault", getenv("SKRSWAP_VAULT_PATH", "data/vault"), "key vault path")
		vaultKey  = flag.String("vault-key", getenv("SKRSWAP_VAULT_KEY", ""), "vault encryption key (32 bytes base64/hex)")
	)
	flag.Parse()

	keyBytes, err := keyvault.ParseKey(*vaultKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("vault encryption key is required: set SKRSWAP_VAULT_KEY or pass -vault-key"))
	}

	entries, err := parseKeyFile(*inPath)
	if err != nil {
		fatal(err)
	}
	if len(entries) == 0 {
		fatal(fmt.Errorf("%s holds no NAME=value lines", *inPath))
	}

	// Reject unusable key material before anything touches the vault.
	for name, material := range entries {
		if _, err := wallet.FromBase58(material); err != nil {
			fatal(fmt.Errorf("entry %s: %w", name, err))
		}
	}

	vault, err := keyvault.Open(keyvault.OpenOptions{
		Path:          *vaultPath,
		EncryptionKey: keyBytes,
		ReadOnly:      false,
	})
	if err != nil {
		fatal(err)
	}
	defer vault.Close()

	written := 0
	for name, material := range entries {
		if err := vault.Set(name, material); err != nil {
			fatal(err)
		}
		written++
	}

	fmt.Fprintf(os.Stderr, "imported %d keys into %s\n", written, *vaultPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}

func parseKeyFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, line := range strings.Split(string(b), "\n") {
		l := strings.TrimSpace(strings.TrimRight(line, "\r"))
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		if !strings.Contains(l, "=") {
			continue
		}
		parts := strings.SplitN(l, "=", 2)
		k := strings.TrimSpace(parts[0])
		v := strings.TrimSpace(parts[1])
		if k == "" {
			continue
		}
		// strip optional quotes
		if len(v) >= 2 && ((v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'')) {
			v = v[1 : len(v)-1]
		}
		out[k] = v
	}
	return out, nil
}
