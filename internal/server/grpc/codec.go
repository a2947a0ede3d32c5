package grpc

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// fields reads typed values out of a request Struct. A field of the wrong
// kind is a validation error; an absent field reads as the zero value.
type fields struct {
	m   map[string]*structpb.Value
	err error
}

func newFields(req *structpb.Struct) *fields {
	return &fields{m: req.GetFields()}
}

func (f *fields) fail(name, want string) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s must be %s", common.ErrorValidation, name, want)
	}
}

func (f *fields) lookup(name string) (*structpb.Value, bool) {
	v, ok := f.m[name]
	if !ok || v == nil {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

func (f *fields) str(name string) string {
	v, ok := f.lookup(name)
	if !ok {
		return ""
	}
	s, isStr := v.GetKind().(*structpb.Value_StringValue)
	if !isStr {
		f.fail(name, "a string")
		return ""
	}
	return s.StringValue
}

// optStr distinguishes an absent field (nil) from an empty string.
func (f *fields) optStr(name string) *string {
	if _, ok := f.lookup(name); !ok {
		return nil
	}
	s := f.str(name)
	return &s
}

func (f *fields) int(name string) int {
	v, ok := f.lookup(name)
	if !ok {
		return 0
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != float64(int(n.NumberValue)) {
		f.fail(name, "an integer")
		return 0
	}
	return int(n.NumberValue)
}

func (f *fields) bytes(name string) []byte {
	s := f.str(name)
	if s == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		f.fail(name, "base64")
		return nil
	}
	return b
}

func (f *fields) strMap(name string) map[string]string {
	v, ok := f.lookup(name)
	if !ok {
		return nil
	}
	st, isStruct := v.GetKind().(*structpb.Value_StructValue)
	if !isStruct {
		f.fail(name, "an object")
		return nil
	}
	out := make(map[string]string, len(st.StructValue.GetFields()))
	for k, item := range st.StructValue.GetFields() {
		s, isStr := item.GetKind().(*structpb.Value_StringValue)
		if !isStr {
			f.fail(name+"."+k, "a string")
			return nil
		}
		out[k] = s.StringValue
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func documentValue(d *models.Document) map[string]any {
	return map[string]any{
		"id":                 d.ID,
		"title":              d.Title,
		"description":        d.Description,
		"filename":           d.Filename,
		"media_type":         d.MediaType,
		"current_version_id": d.CurrentVersionID,
		"creator_id":         d.CreatorID,
		"created_at":         formatTime(d.CreatedAt),
		"updated_at":         formatTime(d.UpdatedAt),
	}
}

func versionValue(v *models.DocumentVersion) map[string]any {
	var prev any
	if v.PrevHash != nil {
		prev = v.PrevHash.String()
	}
	meta := make(map[string]any, len(v.Metadata))
	for k, val := range v.Metadata {
		meta[k] = val
	}
	return map[string]any{
		"id":                v.ID,
		"document_id":       v.DocumentID,
		"version_number":    v.VersionNumber,
		"content_hash":      v.ContentHash.String(),
		"prev_hash":         prev,
		"byte_size":         v.ByteSize,
		"original_filename": v.OriginalFilename,
		"media_type":        v.MediaType,
		"created_by":        v.CreatedBy,
		"created_at":        formatTime(v.CreatedAt),
		"metadata":          meta,
	}
}

func reply(v map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}
