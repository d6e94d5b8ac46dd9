package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/repository"
	"github.com/twopelicans/portal/internal/service"
)

type output struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "", "Admin email")
		company     = flag.String("company", "Two Pelicans", "Admin company")
		password    = flag.String("password", "", "Admin password (generated when empty)")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		os.Exit(1)
	}
	if f := strings.ToLower(*format); f != "plain" && f != "json" {
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}

	if *password == "" {
		generated, err := auth.GeneratePassword(auth.DefaultPasswordLength)
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate password:", err)
			os.Exit(1)
		}
		*password = generated
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, auth.NewHasher(auth.DefaultParams))
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	provisioner := service.NewProvisioner(service.ProvisionerDeps{
		Identities: repo,
		Profiles:   repo,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, service.ProvisionerConfig{})

	res, err := provisioner.BootstrapAdmin(ctx, *email, *company, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap admin:", err)
		os.Exit(1)
	}

	out := output{
		UserID:   res.IdentityID,
		Email:    res.Email,
		Company:  res.Company,
		Role:     string(res.Role),
		Password: *password,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("%s %s\n", out.Email, out.Password)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}
}
