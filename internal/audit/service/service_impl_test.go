package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	"github.com/smallbiznis/pricerules/internal/audit/repository"
	"github.com/smallbiznis/pricerules/internal/auditcontext"
	"github.com/smallbiznis/pricerules/internal/clock"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
	"github.com/smallbiznis/pricerules/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, db, fake, node
}

func TestRecordResolvesActorAndOrgFromContext(t *testing.T) {
	svc, db, _, node := setupAuditService(t)
	orgID := node.Generate()

	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	ctx = auditcontext.WithActor(ctx, "user", "42")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	err := svc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionPriceRuleCreate,
		TargetType: auditdomain.TargetPriceRule,
		TargetID:   "123",
		Metadata:   map[string]any{"name": "Summer"},
	})
	require.NoError(t, err)

	var entries []auditdomain.AuditLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.NotNil(t, entry.OrgID)
	assert.Equal(t, orgID, *entry.OrgID)
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "42", *entry.ActorID)
	assert.Equal(t, "price_rule.create", entry.Action)
	assert.Equal(t, "Summer", entry.Metadata["name"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, db, _, node := setupAuditService(t)
	orgID := node.Generate()

	err := svc.Record(context.Background(), auditdomain.Entry{OrgID: &orgID, Action: auditdomain.ActionPriceRuleStatusChange})
	require.NoError(t, err)

	var entry auditdomain.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), entry.ActorType)
	assert.Equal(t, "unknown", entry.TargetType)
	assert.Nil(t, entry.ActorID)
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	svc, _, _, _ := setupAuditService(t)
	err := svc.Record(context.Background(), auditdomain.Entry{Action: "  ", TargetType: auditdomain.TargetPriceRule})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _, fake, node := setupAuditService(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{
			ActorType:  "system",
			Action:     auditdomain.Action(fmt.Sprintf("price_rule.action_%d", i)),
			TargetType: auditdomain.TargetPriceRule,
		}))
		fake.Advance(time.Minute)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "price_rule.action_2", first.AuditLogs[0].Action)
	assert.Equal(t, "price_rule.action_1", first.AuditLogs[1].Action)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "price_rule.action_0", second.AuditLogs[0].Action)
}

func TestListRequiresOrganization(t *testing.T) {
	svc, _, _, _ := setupAuditService(t)
	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}

func TestListRejectsBadPageToken(t *testing.T) {
	svc, _, _, node := setupAuditService(t)
	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())
	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func TestListFiltersByActionAndTimeRange(t *testing.T) {
	svc, _, fake, node := setupAuditService(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	start := fake.Now()

	actions := []auditdomain.Action{
		auditdomain.ActionPriceRuleCreate,
		auditdomain.ActionPriceRuleUpdate,
		auditdomain.ActionPriceRuleUpdate,
	}
	for _, action := range actions {
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{Action: action, TargetType: auditdomain.TargetPriceRule, TargetID: "9"}))
		fake.Advance(time.Hour)
	}
	other := orgcontext.WithOrgID(context.Background(), node.Generate())
	require.NoError(t, svc.Record(other, auditdomain.Entry{Action: auditdomain.ActionPriceRuleUpdate, TargetType: auditdomain.TargetPriceRule}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "price_rule.update"})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 2)
	assert.False(t, resp.HasMore)

	end := start.Add(90 * time.Minute)
	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end, TargetID: "9"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 2)
	assert.Equal(t, "price_rule.update", resp.AuditLogs[0].Action)
	assert.Equal(t, "price_rule.create", resp.AuditLogs[1].Action)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &end, EndAt: &start})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
