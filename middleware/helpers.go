package middleware

import (
	"context"
	"errors"

	"github.com/Sarvesh28D/FragsHub-sub000/services"
)

type contextKey string

const userContextKey contextKey = "user"

var errNoClaims = errors.New("user claims not found in context")

func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*services.Claims, bool) {
	claims, ok := ctx.Value(userContextKey).(*services.Claims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext возвращает uid текущего пользователя.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UID == "" {
		return "", errNoClaims
	}
	return claims.UID, nil
}

// ActorFromContext: кто выполняет действие, для полей approvedBy/rejectedBy.
func ActorFromContext(ctx context.Context) string {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return services.SystemActor
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.UID
}
