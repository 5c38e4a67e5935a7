// Command token mints access tokens for operators and service callers.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"propflow/internal/platform/auth"
	"propflow/internal/platform/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	userID := flag.String("user", "", "User ID placed in the token")
	orgID := flag.String("org", "", "Organization ID (optional for the service role)")
	role := flag.String("role", auth.RoleService, "Role: owner, admin, member or service")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	switch *role {
	case auth.RoleOwner, auth.RoleAdmin, auth.RoleMember:
		if *orgID == "" {
			log.Fatal().Str("role", *role).Msg("--org is required for organization roles")
		}
	case auth.RoleService:
	default:
		log.Fatal().Str("role", *role).Msg("unknown role")
	}

	token, err := auth.NewTokenService(cfg.JWT).GenerateAccessToken(*userID, *orgID, *role)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Fprintln(os.Stdout, token)
}
