package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/alertdesk/pkg/auth"
)

// SeedFile is the YAML document read by the seed command
//
//	users:
//	  - username: alice
//	    role: admin
//	    password_env: ALICE_PASSWORD
//	  - username: bob
//	    role: viewer
//	    password: changeme
//	    active: false
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

// SeedUser describes one account. PasswordEnv names an environment variable
// holding the password and wins over Password.
type SeedUser struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
	Role        string `yaml:"role"`
	Active      *bool  `yaml:"active"`
}

// LoadSeedFile reads and validates a seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if len(seed.Users) == 0 {
		return nil, errors.New("seed file contains no users")
	}

	seen := make(map[string]bool, len(seed.Users))
	for i, u := range seed.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("user %d: username is required", i+1)
		}
		if seen[u.Username] {
			return nil, fmt.Errorf("user %s: listed more than once", u.Username)
		}
		seen[u.Username] = true

		if _, err := auth.ParseRole(u.Role); err != nil {
			return nil, fmt.Errorf("user %s: %w", u.Username, err)
		}
	}
	return &seed, nil
}

// password resolves the plaintext password of u
func (u SeedUser) password() (string, error) {
	if u.PasswordEnv != "" {
		if v := os.Getenv(u.PasswordEnv); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("user %s: environment variable %s is empty", u.Username, u.PasswordEnv)
	}
	if u.Password == "" {
		return "", fmt.Errorf("user %s: password or password_env is required", u.Username)
	}
	return u.Password, nil
}

func newSeedCommand(e *env) *Command {
	cmd := &Command{
		Name:        "seed",
		Description: "Create or update users from a YAML file",
		Flags:       flag.NewFlagSet("seed", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(e.out)
	file := cmd.Flags.String("file", "users.yaml", "Seed file with the users to provision")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return e.runSeed(ctx, *file)
	}
	return cmd
}

func (e *env) runSeed(ctx context.Context, path string) error {
	seed, err := LoadSeedFile(path)
	if err != nil {
		return err
	}

	st, _, closeDB, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	for _, u := range seed.Users {
		plain, err := u.password()
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(plain, e.cfg.Auth.BcryptCost)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
		role, _ := auth.ParseRole(u.Role)

		active := true
		if u.Active != nil {
			active = *u.Active
		}

		created, err := st.UpsertUser(ctx, &auth.User{
			Username:     u.Username,
			PasswordHash: hash,
			Role:         role,
			Active:       active,
		})
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}

		action := "updated"
		if created {
			action = "created"
		}
		fmt.Fprintf(e.out, "%-8s %s (%s)\n", action, u.Username, role)
	}
	return nil
}
