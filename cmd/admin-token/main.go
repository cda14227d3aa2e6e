// Command admin-token issues a bearer token for the admin API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"welcome-craft/internal/auth"
	"welcome-craft/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	user := flag.String("user", "owner", "user id carried in the token")
	role := flag.String("role", auth.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.JWTSecret == "" || cfg.JWTSecret == "your-secret-key" {
		fmt.Fprintln(os.Stderr, "warning: JWT_SECRET is unset or the default")
	}

	token, err := auth.IssueToken(cfg.JWTSecret, *user, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
