package services

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// Field limits shared with the transport.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 4096
	MaxFilenameLength    = 255
	MaxMediaTypeLength   = 127
)

// CreateDocumentInput is the payload of CreateDocument.
type CreateDocumentInput struct {
	Title       string
	Description string
	Filename    string
	MediaType   string
	Content     []byte
	// Metadata is stored on version 1 as an opaque side-channel.
	Metadata map[string]string
}

// VersionInput is the payload of AddVersion.
type VersionInput struct {
	Filename  string
	MediaType string
	Content   []byte
	Metadata  map[string]string
}

func (in CreateDocumentInput) Validate() error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&in.Description, validation.RuneLength(0, MaxDescriptionLength)),
		validation.Field(&in.Filename, validation.Required, validation.RuneLength(1, MaxFilenameLength)),
		validation.Field(&in.MediaType, validation.Required, validation.RuneLength(1, MaxMediaTypeLength)),
	))
}

func (in VersionInput) Validate() error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.Filename, validation.Required, validation.RuneLength(1, MaxFilenameLength)),
		validation.Field(&in.MediaType, validation.Required, validation.RuneLength(1, MaxMediaTypeLength)),
	))
}

func validateMetadataUpdate(title, description *string) error {
	return invalid(validation.Errors{
		"title":       validation.Validate(title, validation.NilOrNotEmpty, validation.RuneLength(1, MaxTitleLength)),
		"description": validation.Validate(description, validation.RuneLength(0, MaxDescriptionLength)),
	}.Filter())
}

func validateIdentity(who models.Identity) error {
	return invalid(validation.Errors{
		"user_id": validation.Validate(who.UserID, validation.Required),
	}.Filter())
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", common.ErrorValidation, err)
}
