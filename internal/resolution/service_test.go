package resolution

import (
	"context"
	"strings"
	"testing"
	"time"

	"tunesplit-backend/internal/catalog"
	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/pkg/apperr"
	"tunesplit-backend/internal/pkg/wallets"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupResolutionTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Account{}, &domain.Persona{}, &domain.Earning{},
		&domain.ClaimToken{}, &domain.WalletAlias{}, &domain.Content{},
	))
	svc := &Service{
		DB:           db,
		Catalog:      &catalog.Service{DB: db},
		ClaimBaseURL: "https://app.example.com",
	}
	return svc, db
}

func seedAccount(t *testing.T, db *gorm.DB, email string) *domain.Account {
	a := &domain.Account{Email: email, PasswordHash: "x", Fullname: "Test"}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedResolutionPersona(t *testing.T, db *gorm.DB, acct *domain.Account, username string, placeholder, withWallet bool) *domain.Persona {
	p := &domain.Persona{
		AccountID:     acct.AccountID,
		Username:      username,
		DisplayName:   username,
		IsActive:      true,
		IsPlaceholder: placeholder,
	}
	if withWallet {
		w := wallets.GenerateAddress()
		p.WalletAddress = &w
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedHeld(t *testing.T, db *gorm.DB, p *domain.Persona, amount float64, sourceID string) {
	require.NoError(t, db.Create(&domain.Earning{
		PersonaID: p.PersonaID, Amount: amount, SourceType: domain.SourceTypeDownloadSale,
		SourceID: sourceID, Status: domain.EarningStatusHeld,
	}).Error)
}

func heldAndClaimed(t *testing.T, db *gorm.DB, p *domain.Persona) (held, claimed float64) {
	require.NoError(t, db.Model(&domain.Earning{}).
		Where("persona_id = ? AND status = ?", p.PersonaID, domain.EarningStatusHeld).
		Select("COALESCE(SUM(amount), 0)").Scan(&held).Error)
	require.NoError(t, db.Model(&domain.Earning{}).
		Where("persona_id = ? AND status = ?", p.PersonaID, domain.EarningStatusClaimed).
		Select("COALESCE(SUM(amount), 0)").Scan(&claimed).Error)
	return held, claimed
}

func TestGenerateClaimLink(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)

	url, err := svc.GenerateClaimLink(context.Background(), placeholder.PersonaID, owner.AccountID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://app.example.com/claim/"))

	var ct domain.ClaimToken
	require.NoError(t, db.First(&ct).Error)
	assert.Equal(t, placeholder.PersonaID, ct.PlaceholderPersonaID)
	assert.Nil(t, ct.RedeemedAt)
	assert.True(t, ct.ExpiresAt.After(time.Now().Add(6*24*time.Hour)))
}

func TestGenerateClaimLink_WrongOwner(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	other := seedAccount(t, db, "other@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)

	_, err := svc.GenerateClaimLink(context.Background(), placeholder.PersonaID, other.AccountID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestGenerateClaimLink_NotAPlaceholder(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	p := seedResolutionPersona(t, db, owner, "nova", false, true)

	_, err := svc.GenerateClaimLink(context.Background(), p.PersonaID, owner.AccountID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRedeemClaim_MovesHeldFundsExactlyOnce(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	claimant := seedAccount(t, db, "claimant@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	target := seedResolutionPersona(t, db, claimant, "jordan", false, true)
	seedHeld(t, db, placeholder, 40, "sale-1")
	seedHeld(t, db, placeholder, 12.5, "sale-2")

	url, err := svc.GenerateClaimLink(context.Background(), placeholder.PersonaID, owner.AccountID)
	require.NoError(t, err)
	token := url[strings.LastIndex(url, "/")+1:]

	require.NoError(t, svc.RedeemClaim(context.Background(), token, target.PersonaID))

	// Conservation: the full held sum lands on the target, nothing more.
	var fresh domain.Persona
	require.NoError(t, db.First(&fresh, "persona_id = ?", target.PersonaID).Error)
	assert.Equal(t, 52.5, fresh.Balance)

	held, claimed := heldAndClaimed(t, db, placeholder)
	assert.Zero(t, held)
	assert.Equal(t, 52.5, claimed)

	var ph domain.Persona
	require.NoError(t, db.First(&ph, "persona_id = ?", placeholder.PersonaID).Error)
	assert.False(t, ph.IsActive)

	// Second redemption: conflict, no ledger effect.
	err = svc.RedeemClaim(context.Background(), token, target.PersonaID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	require.NoError(t, db.First(&fresh, "persona_id = ?", target.PersonaID).Error)
	assert.Equal(t, 52.5, fresh.Balance)
}

func TestRedeemClaim_ExpiredToken(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	claimant := seedAccount(t, db, "claimant@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	target := seedResolutionPersona(t, db, claimant, "jordan", false, true)

	require.NoError(t, db.Create(&domain.ClaimToken{
		Token:                "expired-token",
		PlaceholderPersonaID: placeholder.PersonaID,
		AccountID:            owner.AccountID,
		ExpiresAt:            time.Now().Add(-time.Hour),
	}).Error)

	err := svc.RedeemClaim(context.Background(), "expired-token", target.PersonaID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	var ph domain.Persona
	require.NoError(t, db.First(&ph, "persona_id = ?", placeholder.PersonaID).Error)
	assert.True(t, ph.IsActive, "expired redemption leaves the placeholder untouched")
}

func TestRedeemClaim_UnknownToken(t *testing.T) {
	svc, db := setupResolutionTest(t)
	claimant := seedAccount(t, db, "claimant@example.com")
	target := seedResolutionPersona(t, db, claimant, "jordan", false, true)

	err := svc.RedeemClaim(context.Background(), "nope", target.PersonaID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLinkPlaceholder_MovesFundsAndAliasesFutureEarnings(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	other := seedAccount(t, db, "other@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	target := seedResolutionPersona(t, db, other, "jordan", false, true)
	seedHeld(t, db, placeholder, 30, "sale-1")

	require.NoError(t, svc.LinkPlaceholder(context.Background(), placeholder.PersonaID, target.PersonaID, owner.AccountID))

	var fresh domain.Persona
	require.NoError(t, db.First(&fresh, "persona_id = ?", target.PersonaID).Error)
	assert.Equal(t, 30.0, fresh.Balance)

	// The placeholder's wallet now routes to the target.
	var alias domain.WalletAlias
	require.NoError(t, db.First(&alias, "alias_wallet = ?", placeholder.Wallet()).Error)
	assert.Equal(t, target.PersonaID, alias.ResolvedPersonaID)
}

func TestLinkPlaceholder_OwnPersonaRejected(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	mine := seedResolutionPersona(t, db, owner, "jordan", false, true)

	err := svc.LinkPlaceholder(context.Background(), placeholder.PersonaID, mine.PersonaID, owner.AccountID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestMergePlaceholder_OtherAccountRejected(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	other := seedAccount(t, db, "other@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	theirs := seedResolutionPersona(t, db, other, "jordan", false, true)

	err := svc.MergePlaceholder(context.Background(), placeholder.PersonaID, theirs.PersonaID, owner.AccountID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestMergePlaceholder_RewritesSplitsAndMovesFunds(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	mine := seedResolutionPersona(t, db, owner, "jordan", false, true)
	seedHeld(t, db, placeholder, 18, "sale-1")

	comp, err := domain.EncodeSplits([]domain.SplitEntry{
		{Wallet: placeholder.Wallet(), Percentage: 40},
		{Wallet: mine.Wallet(), Percentage: 60},
	})
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.Content{
		ContentID:         "track-1",
		UploaderPersonaID: mine.PersonaID,
		Title:             "Track One",
		CompositionSplits: comp,
	}).Error)

	require.NoError(t, svc.MergePlaceholder(context.Background(), placeholder.PersonaID, mine.PersonaID, owner.AccountID))

	var fresh domain.Persona
	require.NoError(t, db.First(&fresh, "persona_id = ?", mine.PersonaID).Error)
	assert.Equal(t, 18.0, fresh.Balance)

	// Split entries referencing the placeholder wallet now name the target.
	var content domain.Content
	require.NoError(t, db.First(&content, "content_id = ?", "track-1").Error)
	entries, err := domain.DecodeSplits(content.CompositionSplits)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, mine.Wallet(), entries[0].Wallet)
	assert.Equal(t, mine.Wallet(), entries[1].Wallet)
}

func TestMergePlaceholder_WalletlessTargetAdoptsWallet(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	mine := seedResolutionPersona(t, db, owner, "jordan", false, false)
	adopted := placeholder.Wallet()

	require.NoError(t, svc.MergePlaceholder(context.Background(), placeholder.PersonaID, mine.PersonaID, owner.AccountID))

	var fresh domain.Persona
	require.NoError(t, db.First(&fresh, "persona_id = ?", mine.PersonaID).Error)
	assert.Equal(t, adopted, fresh.Wallet(), "walletless target adopts the placeholder's implicit wallet")

	var ph domain.Persona
	require.NoError(t, db.First(&ph, "persona_id = ?", placeholder.PersonaID).Error)
	assert.Nil(t, ph.WalletAddress)
}

func TestResolution_AlreadyResolvedConflicts(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	other := seedAccount(t, db, "other@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	target := seedResolutionPersona(t, db, other, "jordan", false, true)
	mine := seedResolutionPersona(t, db, owner, "self", false, true)

	require.NoError(t, svc.LinkPlaceholder(context.Background(), placeholder.PersonaID, target.PersonaID, owner.AccountID))

	err := svc.MergePlaceholder(context.Background(), placeholder.PersonaID, mine.PersonaID, owner.AccountID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestResolution_TargetCannotBePlaceholder(t *testing.T) {
	svc, db := setupResolutionTest(t)
	owner := seedAccount(t, db, "owner@example.com")
	other := seedAccount(t, db, "other@example.com")
	placeholder := seedResolutionPersona(t, db, owner, "tbd-jordan", true, true)
	alsoPlaceholder := seedResolutionPersona(t, db, other, "tbd-other", true, true)

	err := svc.LinkPlaceholder(context.Background(), placeholder.PersonaID, alsoPlaceholder.PersonaID, owner.AccountID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
