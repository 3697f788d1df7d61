// Package seed bootstraps an organization at startup: it grants the owner
// role and loads an initial set of price rules from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pricerules/internal/auditcontext"
	"github.com/smallbiznis/pricerules/internal/authorization"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
	"github.com/smallbiznis/pricerules/internal/pricerule/importer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, p Params) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return EnsureBootstrap(ctx, p)
			},
		})
	}),
)

var ErrInvalidSeedConfig = errors.New("invalid_seed_config")

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Importer *importer.Importer
	Authz    authorization.Service `optional:"true"`
}

// EnsureBootstrap is idempotent: the role grant is a no-op when present and
// rules whose code already exists are reported as failures and skipped.
func EnsureBootstrap(ctx context.Context, p Params) error {
	cfg := p.Cfg.Seed
	if strings.TrimSpace(cfg.OrgID) == "" {
		return nil
	}
	log := p.Log.Named("seed")

	orgID, ok := orgcontext.ParseOrgID(cfg.OrgID)
	if !ok {
		return fmt.Errorf("%w: org id %q", ErrInvalidSeedConfig, cfg.OrgID)
	}
	ctx = orgcontext.WithOrgID(ctx, orgID)
	ctx = auditcontext.WithActor(ctx, "system", "seed")

	if owner := strings.TrimSpace(cfg.OwnerUserID); owner != "" {
		if p.Authz == nil {
			return fmt.Errorf("%w: owner grant needs authorization", ErrInvalidSeedConfig)
		}
		userID, err := snowflake.ParseString(owner)
		if err != nil || userID == 0 {
			return fmt.Errorf("%w: owner user id %q", ErrInvalidSeedConfig, owner)
		}
		if err := p.Authz.AssignRole(ctx, orgID, userID, authorization.RoleOwner); err != nil {
			return fmt.Errorf("assign owner role: %w", err)
		}
		log.Info("owner role ensured", zap.String("org_id", orgID.String()), zap.String("user_id", userID.String()))
	}

	if path := strings.TrimSpace(cfg.RulesFile); path != "" {
		if p.Importer == nil {
			return fmt.Errorf("%w: rules import needs the importer", ErrInvalidSeedConfig)
		}
		result, err := p.Importer.ImportFile(ctx, path)
		if err != nil {
			return fmt.Errorf("import seed rules: %w", err)
		}
		log.Info("seed rules imported",
			zap.String("file", path),
			zap.Int("created", len(result.Created)),
			zap.Int("skipped", len(result.Failed)),
		)
	}

	return nil
}
