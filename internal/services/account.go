package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/moodlocation/apiserver/internal/store"
	"github.com/moodlocation/apiserver/types"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update types.ProfileUpdate) (types.Account, error)
}

// SignupInput carries the fields accepted on signup.
type SignupInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Gender    string `json:"gender" validate:"required,oneof=male female other not-specified"`
}

// AccountService encapsulates account use-cases.
type AccountService struct {
	repo   AccountRepository
	images ImageStore
	events events
	logger *slog.Logger
}

// NewAccountService constructs the service. images and publisher may be nil,
// which disables profile image storage and event publishing respectively.
func NewAccountService(repo AccountRepository, images ImageStore, publisher EventPublisher, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		repo:   repo,
		images: images,
		events: newEvents(publisher, logger),
		logger: logger,
	}
}

// PrepareAccountForStorage applies defaults and replaces the plaintext
// password with its digest. It is called once, right before the account is
// first written.
func PrepareAccountForStorage(account *types.Account, password string) error {
	if len(password) < 6 {
		return newValidationError("password", "password must be at least 6 characters")
	}
	if account.Age != nil && *account.Age < 1 {
		return newValidationError("age", "age must be at least 1")
	}

	digest, err := HashPassword(password)
	if err != nil {
		return err
	}

	account.PasswordHash = digest
	account.Gender = lo.CoalesceOrEmpty(account.Gender, types.GenderNotSpecified)
	account.Role = lo.CoalesceOrEmpty(account.Role, types.RoleUser)
	account.Status = lo.CoalesceOrEmpty(account.Status, types.StatusActive)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	return nil
}

// Signup registers a new account.
func (s *AccountService) Signup(ctx context.Context, input SignupInput) (types.Account, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.TrimSpace(input.Email)
	if err := validateInput(input); err != nil {
		return types.Account{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return types.Account{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Account{}, err
	}

	account := types.Account{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Gender:    input.Gender,
	}
	if err := PrepareAccountForStorage(&account, input.Password); err != nil {
		return types.Account{}, err
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return types.Account{}, ErrEmailTaken
		}
		return types.Account{}, err
	}
	created.PasswordHash = ""

	s.events.publish(ctx, EventAccountRegistered, created.Summary())
	return created, nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (types.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.Account{}, ErrInvalidCredentials
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			VerifyPassword(dummyDigest, password)
			return types.Account{}, ErrInvalidCredentials
		}
		return types.Account{}, err
	}

	if !VerifyPassword(account.PasswordHash, password) {
		return types.Account{}, ErrInvalidCredentials
	}

	account.PasswordHash = ""
	return account, nil
}

// GetProfile returns the account without its password digest.
func (s *AccountService) GetProfile(ctx context.Context, id string) (types.Account, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return types.Account{}, store.ErrNotFound
	}
	return s.repo.GetByID(ctx, oid)
}

// UpdateProfile applies the mutable profile fields and returns the result.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.Account, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return types.Account{}, store.ErrNotFound
	}
	if err := validateInput(update); err != nil {
		return types.Account{}, err
	}

	updated, err := s.repo.UpdateProfile(ctx, oid, update)
	if err != nil {
		return types.Account{}, err
	}

	if !update.IsEmpty() {
		s.events.publish(ctx, EventProfileUpdated, updated.Summary())
	}
	return updated, nil
}

func parseObjectID(raw string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(strings.TrimSpace(raw))
}
