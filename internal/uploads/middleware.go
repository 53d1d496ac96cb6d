package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/responses"
)

const (
	// FieldName is the multipart field carrying the image.
	FieldName = "imagen"

	filenamePrefix = "muro"
	// formOverhead bounds the non-file part of a multipart body.
	formOverhead  = 1 << 20
	maxFormMemory = 8 << 20
)

var allowedExtensions = map[string]struct{}{
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

var allowedMIMETypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Saver persists an uploaded file under a name chosen by the middleware.
type Saver interface {
	Save(ctx context.Context, name string, src io.Reader) error
}

type ctxKey struct{}

// FilenameFromContext returns the stored name of the file uploaded with the
// request, or "" when none was sent.
func FilenameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(ctxKey{}).(string)
	return name
}

// WithFilename records an uploaded filename on ctx.
func WithFilename(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKey{}, name)
}

// Image parses multipart requests, validates the optional image field and
// stores it before the next handler runs. Other content types pass through.
func Image(saver Saver, maxBytes int64, resp *responses.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if mediaType != "multipart/form-data" {
				next.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
			if err := r.ParseMultipartForm(maxFormMemory); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					resp.Error(r.Context(), w, fileTooLarge(maxBytes))
					return
				}
				resp.Error(r.Context(), w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Formulario inválido"))
				return
			}
			defer r.MultipartForm.RemoveAll()

			file, header, err := r.FormFile(FieldName)
			if errors.Is(err, http.ErrMissingFile) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				resp.Error(r.Context(), w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Archivo inválido"))
				return
			}
			defer file.Close()

			name, err := store(r.Context(), saver, file, header, maxBytes)
			if err != nil {
				resp.Error(r.Context(), w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithFilename(r.Context(), name)))
		})
	}
}

func store(ctx context.Context, saver Saver, file multipart.File, header *multipart.FileHeader, maxBytes int64) (string, error) {
	if header.Size > maxBytes {
		return "", fileTooLarge(maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", pkgerrors.Validation("Solo se permiten imágenes (jpeg, jpg, png, gif, webp)")
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "No se pudo leer el archivo")
	}
	if !mimetype.EqualsAny(detected.String(), allowedMIMETypes...) {
		return "", pkgerrors.Validation("Solo se permiten imágenes (jpeg, jpg, png, gif, webp)")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	name := GenerateName(time.Now(), ext)
	if err := saver.Save(ctx, name, file); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return name, nil
}

// GenerateName returns a collision-resistant filename such as
// muro-1700000000000-<uuid>.png.
func GenerateName(now time.Time, ext string) string {
	return fmt.Sprintf("%s-%d-%s%s", filenamePrefix, now.UnixMilli(), uuid.NewString(), ext)
}

func fileTooLarge(maxBytes int64) error {
	return pkgerrors.Validation(fmt.Sprintf("El archivo excede el tamaño máximo de %d MB", maxBytes/(1<<20)))
}
