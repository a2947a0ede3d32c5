package grpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/services"
)

// MaxSearchLimit caps SearchDocuments page size.
const MaxSearchLimit = 1000

type documentRef struct {
	DocumentID string `json:"document_id"`
}

func (r documentRef) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DocumentID, validation.Required, is.UUID),
	)
}

type versionRef struct {
	DocumentID string `json:"document_id"`
	VersionID  string `json:"version_id"`
}

func (r versionRef) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DocumentID, validation.Required, is.UUID),
		validation.Field(&r.VersionID, validation.Required, is.UUID),
	)
}

type searchRequest struct {
	TitleContains string `json:"title_contains"`
	CreatorID     string `json:"creator_id"`
	SortBy        string `json:"sort_by"`
	SortOrder     string `json:"sort_order"`
	Offset        int    `json:"offset"`
	Limit         int    `json:"limit"`
}

func (r searchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SortBy, validation.In(models.SortByCreatedAt, models.SortByUpdatedAt, models.SortByTitle)),
		validation.Field(&r.SortOrder, validation.In(models.SortAsc, models.SortDesc)),
		validation.Field(&r.Offset, validation.Min(0)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(MaxSearchLimit)),
	)
}

// checked returns the decoding error of f or the validation error of v.
func checked(f *fields, v validation.Validatable) error {
	if f.err != nil {
		return f.err
	}
	err := v.Validate()
	if err == nil || errors.Is(err, common.ErrorValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrorValidation, err)
}

func (s *GRPCServer) authorize(ctx context.Context, method, documentID string) (models.Identity, error) {
	who, ok := IdentityFromContext(ctx)
	if !ok {
		return models.Identity{}, common.ErrorUnauthorized
	}
	if err := s.authorizer.Authorize(ctx, who, method, documentID); err != nil {
		return models.Identity{}, err
	}
	return who, nil
}

// documentCall decodes document_id, authorizes method and returns the id.
func (s *GRPCServer) documentCall(ctx context.Context, method string, req *structpb.Struct) (*fields, string, models.Identity, error) {
	f := newFields(req)
	ref := documentRef{DocumentID: f.str("document_id")}
	if err := checked(f, ref); err != nil {
		return nil, "", models.Identity{}, err
	}
	who, err := s.authorize(ctx, method, ref.DocumentID)
	if err != nil {
		return nil, "", models.Identity{}, err
	}
	return f, ref.DocumentID, who, nil
}

func (s *GRPCServer) CreateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	in := services.CreateDocumentInput{
		Title:       f.str("title"),
		Description: f.str("description"),
		Filename:    f.str("filename"),
		MediaType:   f.str("media_type"),
		Content:     f.bytes("content"),
		Metadata:    f.strMap("metadata"),
	}
	if err := checked(f, in); err != nil {
		return nil, toStatus(err)
	}
	who, err := s.authorize(ctx, MethodCreateDocument, "")
	if err != nil {
		return nil, toStatus(err)
	}

	doc, err := s.store.CreateDocument(ctx, in, who)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"document": documentValue(doc)})
}

func (s *GRPCServer) AddVersion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, id, who, err := s.documentCall(ctx, MethodAddVersion, req)
	if err != nil {
		return nil, toStatus(err)
	}
	in := services.VersionInput{
		Filename:  f.str("filename"),
		MediaType: f.str("media_type"),
		Content:   f.bytes("content"),
		Metadata:  f.strMap("metadata"),
	}
	if err := checked(f, in); err != nil {
		return nil, toStatus(err)
	}

	v, err := s.store.AddVersion(ctx, id, in, who)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"version": versionValue(v)})
}

func (s *GRPCServer) GetVersion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	ref := versionRef{DocumentID: f.str("document_id"), VersionID: f.str("version_id")}
	if err := checked(f, ref); err != nil {
		return nil, toStatus(err)
	}
	if _, err := s.authorize(ctx, MethodGetVersion, ref.DocumentID); err != nil {
		return nil, toStatus(err)
	}

	content, v, err := s.store.GetVersion(ctx, ref.DocumentID, ref.VersionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return contentReply(content, v)
}

func (s *GRPCServer) GetCurrent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, id, _, err := s.documentCall(ctx, MethodGetCurrent, req)
	if err != nil {
		return nil, toStatus(err)
	}

	content, v, err := s.store.GetCurrent(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return contentReply(content, v)
}

func contentReply(content []byte, v *models.DocumentVersion) (*structpb.Struct, error) {
	return reply(map[string]any{
		"version": versionValue(v),
		"content": base64.StdEncoding.EncodeToString(content),
	})
}

func (s *GRPCServer) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, id, _, err := s.documentCall(ctx, MethodGetDocument, req)
	if err != nil {
		return nil, toStatus(err)
	}

	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"document": documentValue(doc)})
}

func (s *GRPCServer) ListVersions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, id, _, err := s.documentCall(ctx, MethodListVersions, req)
	if err != nil {
		return nil, toStatus(err)
	}

	list, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(list))
	for i := range list {
		items = append(items, versionValue(&list[i]))
	}
	return reply(map[string]any{"versions": items})
}

func (s *GRPCServer) SearchDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	r := searchRequest{
		TitleContains: f.str("title_contains"),
		CreatorID:     f.str("creator_id"),
		SortBy:        f.str("sort_by"),
		SortOrder:     f.str("sort_order"),
		Offset:        f.int("offset"),
		Limit:         f.int("limit"),
	}
	if err := checked(f, r); err != nil {
		return nil, toStatus(err)
	}
	if _, err := s.authorize(ctx, MethodSearchDocuments, ""); err != nil {
		return nil, toStatus(err)
	}

	docs, err := s.store.SearchDocuments(ctx, models.SearchFilter{
		TitleContains: r.TitleContains,
		CreatorID:     r.CreatorID,
		SortBy:        r.SortBy,
		SortOrder:     r.SortOrder,
		Offset:        r.Offset,
		Limit:         r.Limit,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentValue(d))
	}
	return reply(map[string]any{"documents": items})
}

func (s *GRPCServer) VerifyIntegrity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, id, _, err := s.documentCall(ctx, MethodVerifyIntegrity, req)
	if err != nil {
		return nil, toStatus(err)
	}

	report, err := s.store.VerifyIntegrity(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{
		"valid":         report.Valid,
		"detail":        report.Detail,
		"version_count": report.VersionCount,
	})
}

func (s *GRPCServer) SoftDelete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, id, _, err := s.documentCall(ctx, MethodSoftDelete, req)
	if err != nil {
		return nil, toStatus(err)
	}

	if err := s.store.SoftDelete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"deleted": true})
}

func (s *GRPCServer) UpdateMetadata(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, id, _, err := s.documentCall(ctx, MethodUpdateMetadata, req)
	if err != nil {
		return nil, toStatus(err)
	}
	title, description := f.optStr("title"), f.optStr("description")
	if f.err != nil {
		return nil, toStatus(f.err)
	}

	doc, err := s.store.UpdateMetadata(ctx, id, title, description)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"document": documentValue(doc)})
}
