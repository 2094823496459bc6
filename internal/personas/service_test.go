package personas

import (
	"context"
	"testing"

	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/pkg/apperr"
	"tunesplit-backend/internal/pkg/wallets"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupPersonasTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Account{}, &domain.Persona{}))
	return &Service{DB: db}, db
}

func createAccount(t *testing.T, db *gorm.DB, email string) *domain.Account {
	a := &domain.Account{Email: email, PasswordHash: "x", Fullname: "Test Account"}
	require.NoError(t, db.Create(a).Error)
	return a
}

func TestCreatePersona_FirstIsDefault(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")

	first, err := svc.CreatePersona(context.Background(), CreatePersonaInput{
		AccountID: acct.AccountID, Username: "Nova",
	})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "nova", first.Username)
	assert.Equal(t, "nova", first.DisplayName)

	second, err := svc.CreatePersona(context.Background(), CreatePersonaInput{
		AccountID: acct.AccountID, Username: "echo", DisplayName: "Echo",
	})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
}

func TestCreatePersona_ReservedPrefix(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")

	_, err := svc.CreatePersona(context.Background(), CreatePersonaInput{
		AccountID: acct.AccountID, Username: "tbd-someone",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.CreatePersona(context.Background(), CreatePersonaInput{
		AccountID: acct.AccountID, Username: SentinelUsername,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreatePersona_UsernameTaken(t *testing.T) {
	svc, db := setupPersonasTest(t)
	a := createAccount(t, db, "a@example.com")
	b := createAccount(t, db, "b@example.com")

	_, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: a.AccountID, Username: "nova"})
	require.NoError(t, err)
	_, err = svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: b.AccountID, Username: "NOVA"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestSetDefault_PlaceholderRejected(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")
	_, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "nova"})
	require.NoError(t, err)

	var placeholder *domain.Persona
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		placeholder, err = svc.MaterializePlaceholder(tx, acct.AccountID, "Jordan")
		return err
	}))

	err = svc.SetDefault(context.Background(), acct.AccountID, placeholder.PersonaID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSetDefault_MovesFlag(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")
	first, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "nova"})
	require.NoError(t, err)
	second, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "echo"})
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(context.Background(), acct.AccountID, second.PersonaID))

	var p domain.Persona
	require.NoError(t, db.First(&p, "persona_id = ?", first.PersonaID).Error)
	assert.False(t, p.IsDefault)
	// A fresh struct: reusing p would carry its primary key into the query.
	var q domain.Persona
	require.NoError(t, db.First(&q, "persona_id = ?", second.PersonaID).Error)
	assert.True(t, q.IsDefault)
}

func TestAssignWallet_OnceOnly(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")
	p, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "nova"})
	require.NoError(t, err)

	w1 := wallets.GenerateAddress()
	updated, err := svc.AssignWallet(context.Background(), acct.AccountID, p.PersonaID, w1)
	require.NoError(t, err)
	assert.Equal(t, w1, updated.Wallet())

	_, err = svc.AssignWallet(context.Background(), acct.AccountID, p.PersonaID, wallets.GenerateAddress())
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// A Stacks address lands in its own column and is independently immutable.
	stacks := "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
	updated, err = svc.AssignWallet(context.Background(), acct.AccountID, p.PersonaID, stacks)
	require.NoError(t, err)
	require.NotNil(t, updated.StacksAddress)
	assert.Equal(t, stacks, *updated.StacksAddress)

	_, err = svc.AssignWallet(context.Background(), acct.AccountID, p.PersonaID, "ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestAssignWallet_InvalidFormat(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")
	p, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "nova"})
	require.NoError(t, err)

	_, err = svc.AssignWallet(context.Background(), acct.AccountID, p.PersonaID, "0xnope")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDeactivatePersona_DefaultHandoffPrefersNonPlaceholder(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")
	first, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "nova"})
	require.NoError(t, err)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.MaterializePlaceholder(tx, acct.AccountID, "Jordan")
		return err
	}))
	second, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "echo"})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivatePersona(context.Background(), acct.AccountID, first.PersonaID))

	var p domain.Persona
	require.NoError(t, db.First(&p, "persona_id = ?", second.PersonaID).Error)
	assert.True(t, p.IsDefault, "default should skip the older placeholder")
}

func TestDeactivatePersona_LastOneDeletesAccount(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")
	p, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "nova"})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivatePersona(context.Background(), acct.AccountID, p.PersonaID))

	var n int64
	require.NoError(t, db.Model(&domain.Account{}).Where("account_id = ?", acct.AccountID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDeactivatePersona_AlreadyInactive(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")
	p, err := svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "nova"})
	require.NoError(t, err)
	_, err = svc.CreatePersona(context.Background(), CreatePersonaInput{AccountID: acct.AccountID, Username: "echo"})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivatePersona(context.Background(), acct.AccountID, p.PersonaID))
	err = svc.DeactivatePersona(context.Background(), acct.AccountID, p.PersonaID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestMaterializePlaceholder_CollisionSuffix(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")

	var first, second, third *domain.Persona
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		if first, err = svc.MaterializePlaceholder(tx, acct.AccountID, "Jordan Lee"); err != nil {
			return err
		}
		if second, err = svc.MaterializePlaceholder(tx, acct.AccountID, "Jordan Lee!"); err != nil {
			return err
		}
		third, err = svc.MaterializePlaceholder(tx, acct.AccountID, "jordan   lee")
		return err
	}))

	assert.Equal(t, "tbd-jordan-lee", first.Username)
	assert.Equal(t, "tbd-jordan-lee-2", second.Username)
	assert.Equal(t, "tbd-jordan-lee-3", third.Username)
	assert.True(t, first.IsPlaceholder)
	assert.True(t, wallets.IsValidAddress(first.Wallet()), "placeholder gets an implicit wallet")
	assert.False(t, first.IsDefault)
}

func TestMaterializePlaceholder_EmptySlug(t *testing.T) {
	svc, db := setupPersonasTest(t)
	acct := createAccount(t, db, "a@example.com")

	var p *domain.Persona
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = svc.MaterializePlaceholder(tx, acct.AccountID, "!!!")
		return err
	}))
	assert.Equal(t, "tbd-collab", p.Username)
}

func TestEnsureSentinel_Idempotent(t *testing.T) {
	svc, db := setupPersonasTest(t)

	var a, b *domain.Persona
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = svc.EnsureSentinel(tx); err != nil {
			return err
		}
		b, err = svc.EnsureSentinel(tx)
		return err
	}))
	assert.Equal(t, a.PersonaID, b.PersonaID)
	assert.Equal(t, SentinelUsername, a.Username)
	assert.NotEqual(t, uuid.Nil, a.AccountID)
}
