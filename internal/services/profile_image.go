package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/moodlocation/apiserver/internal/storage"
	"github.com/moodlocation/apiserver/internal/store"
	"github.com/moodlocation/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	profileImagePrefix = "profiles/"
	sniffLen           = 512
)

// ImageStore is the object storage used for profile images.
// *storage.Storage satisfies it.
type ImageStore interface {
	Put(ctx context.Context, upload storage.Upload) error
	Open(ctx context.Context, key string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// ImageUpload is a profile image received from a client.
type ImageUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// ProfileImage is an opened stored image. Callers must close Body.
type ProfileImage struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// ProfileImageKey builds the object key for a new image of the account.
func ProfileImageKey(accountID primitive.ObjectID, ext string) string {
	return fmt.Sprintf("%s%s/%s%s", profileImagePrefix, accountID.Hex(), uuid.NewString(), ext)
}

func isStoredImage(accountID primitive.ObjectID, key string) bool {
	return strings.HasPrefix(key, profileImagePrefix+accountID.Hex()+"/")
}

// SetProfileImage stores the uploaded image, points the account's
// profileImage at it and removes the image it replaces.
func (s *AccountService) SetProfileImage(ctx context.Context, id string, upload ImageUpload) (types.Account, error) {
	if s.images == nil {
		return types.Account{}, ErrStorageDisabled
	}
	oid, err := parseObjectID(id)
	if err != nil {
		return types.Account{}, store.ErrNotFound
	}
	if upload.Body == nil || upload.Size <= 0 {
		return types.Account{}, newValidationError("image", "image is required")
	}

	current, err := s.repo.GetByID(ctx, oid)
	if err != nil {
		return types.Account{}, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return types.Account{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return types.Account{}, newValidationError("image", "image must be an image file")
	}

	key := ProfileImageKey(oid, imageExtension(upload.Filename, contentType))
	err = s.images.Put(ctx, storage.Upload{
		Key:         key,
		Body:        io.MultiReader(bytes.NewReader(head), upload.Body),
		Size:        upload.Size,
		ContentType: contentType,
		Owner:       oid.Hex(),
	})
	if err != nil {
		return types.Account{}, fmt.Errorf("store image: %w", err)
	}

	updated, err := s.repo.UpdateProfile(ctx, oid, types.ProfileUpdate{ProfileImage: &key})
	if err != nil {
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "remove orphaned image failed", "key", key, "error", delErr)
		}
		return types.Account{}, err
	}

	if previous := current.ProfileImage; previous != key && isStoredImage(oid, previous) {
		if err := s.images.Delete(ctx, previous); err != nil {
			s.logger.WarnContext(ctx, "remove previous image failed", "key", previous, "error", err)
		}
	}

	s.events.publish(ctx, EventProfileUpdated, updated.Summary())
	return updated, nil
}

// OpenProfileImage opens the stored image of the account. Accounts whose
// profileImage does not reference stored content yield store.ErrNotFound.
func (s *AccountService) OpenProfileImage(ctx context.Context, id string) (ProfileImage, error) {
	if s.images == nil {
		return ProfileImage{}, ErrStorageDisabled
	}
	oid, err := parseObjectID(id)
	if err != nil {
		return ProfileImage{}, store.ErrNotFound
	}

	account, err := s.repo.GetByID(ctx, oid)
	if err != nil {
		return ProfileImage{}, err
	}
	if !isStoredImage(oid, account.ProfileImage) {
		return ProfileImage{}, store.ErrNotFound
	}

	obj, err := s.images.Open(ctx, account.ProfileImage)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ProfileImage{}, store.ErrNotFound
		}
		return ProfileImage{}, err
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(account.ProfileImage))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return ProfileImage{
		Key:         account.ProfileImage,
		ContentType: contentType,
		Size:        obj.Size,
		Body:        obj.Body,
	}, nil
}

func imageExtension(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && mime.TypeByExtension(ext) == contentType {
		return ext
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
