package handlers

import "context"

type readerKey struct{}

// Reader is the authenticated caller of a request
type Reader struct {
	ID          string
	Username    string
	DisplayName string
}

// WithReader кладет читателя из токена в контекст
func WithReader(ctx context.Context, reader Reader) context.Context {
	return context.WithValue(ctx, readerKey{}, reader)
}

// ReaderFrom возвращает читателя запроса, если он аутентифицирован
func ReaderFrom(ctx context.Context) (Reader, bool) {
	reader, ok := ctx.Value(readerKey{}).(Reader)
	return reader, ok && reader.ID != ""
}

// GetUserID извлекает id читателя из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	reader, ok := ReaderFrom(ctx)
	return reader.ID, ok
}
