// Command credential_tool sets the API credential in a registry document.
// The credential is stored as a bcrypt hash; the HTTP login endpoint
// checks submitted credentials against it.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"vpsd/internal/models"
	"vpsd/internal/registry"
)

func main() {
	registryPath := flag.String("registry", "config.json", "Path to the registry document")
	credential := flag.String("credential", "", "New credential (leave blank to type securely)")
	flag.Parse()

	secret := strings.TrimSpace(*credential)
	if secret == "" {
		var err error
		secret, err = promptCredential()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read credential: %v\n", err)
			os.Exit(1)
		}
	}
	if len(secret) < 12 {
		fmt.Fprintln(os.Stderr, "credential must be at least 12 characters")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash credential: %v\n", err)
		os.Exit(1)
	}

	reg := registry.New(afero.NewOsFs(), *registryPath)
	if err := reg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load registry: %v\n", err)
		os.Exit(1)
	}
	if err := reg.UpdateSettings(func(s *models.Settings) {
		s.APICredential = string(hash)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save registry: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("API credential updated.")
}

func promptCredential() (string, error) {
	fmt.Fprint(os.Stderr, "New credential: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Confirm credential: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("credentials did not match")
	}
	return strings.TrimSpace(string(first)), nil
}
