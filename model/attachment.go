package model

import "strings"

// Attachment はタスクに添付されたファイルです。*InlineFile か *ExternalFile のいずれかで、
// ファイルのないタスクは nil を持ちます。
type Attachment interface {
	isAttachment()
}

// InlineFile はタスクと一緒にデータを保存するファイルです。
type InlineFile struct {
	Data        []byte
	Name        string
	ContentType string
}

func (*InlineFile) isAttachment() {}

// Complete はデータ・ファイル名・Content-Typeがすべて揃っているかを返します。
func (f *InlineFile) Complete() bool {
	return len(f.Data) > 0 && strings.TrimSpace(f.Name) != "" && strings.TrimSpace(f.ContentType) != ""
}

// ExternalFile はオブジェクトストレージに保存され、URLで参照されるファイルです。
type ExternalFile struct {
	URL string
}

func (*ExternalFile) isAttachment() {}

// FileName はURLの最後のパス要素を返します。
func (f *ExternalFile) FileName() string {
	i := strings.LastIndex(f.URL, "/")
	return f.URL[i+1:]
}

func validateAttachment(a Attachment) error {
	switch a := a.(type) {
	case nil:
		return nil
	case *InlineFile:
		return validateInline(a.Data, a.Name, a.ContentType)
	case *ExternalFile:
		return validateURL(a.URL)
	}
	return NewValidationError("Unknown attachment type.")
}

func validateInline(data []byte, name, contentType string) error {
	if len(data) == 0 {
		return NewValidationError("File data cannot be empty.")
	}
	if strings.TrimSpace(name) == "" {
		return NewValidationError("File name cannot be empty.")
	}
	if strings.TrimSpace(contentType) == "" {
		return NewValidationError("Content type cannot be empty.")
	}
	return nil
}

func validateURL(url string) error {
	if strings.TrimSpace(url) == "" {
		return NewValidationError("File URL cannot be empty.")
	}
	return nil
}
