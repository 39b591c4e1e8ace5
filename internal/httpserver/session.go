package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

const claimsContextKey = "auth_claims"

// sessionClaims carries the authenticated account identity inside the session
// cookie.
type sessionClaims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (server *Server) issueSessionCookie(ctx *gin.Context, account library.Account) error {
	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    server.cfg.SessionIssuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(server.cfg.SessionTTL)),
		},
		DisplayName: account.DisplayName,
		Role:        account.Role.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(server.cfg.SessionSigningKey))
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(server.cfg.SessionCookieName, signed, int(server.cfg.SessionTTL.Seconds()), "/", "", false, true)
	return nil
}

func (server *Server) parseSessionToken(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(server.cfg.SessionSigningKey), nil
		},
		jwt.WithIssuer(server.cfg.SessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

// requireSession rejects requests without a valid session cookie and stashes
// the claims for handlers.
func (server *Server) requireSession() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw, err := ctx.Cookie(server.cfg.SessionCookieName)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
			return
		}
		claims, err := server.parseSessionToken(raw)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session"))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

// requireAdmin gates administrator-only routes.
func (server *Server) requireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims := getClaims(ctx)
		if claims == nil || claims.Role != library.RoleAdmin.String() {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "administrator role required"))
			return
		}
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *sessionClaims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionClaims)
	return claims
}

func (server *Server) sessionAccountID(ctx *gin.Context) (library.AccountID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return library.AccountID{}, false
	}
	accountID, err := library.NewAccountID(claims.Subject)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session subject"))
		return library.AccountID{}, false
	}
	return accountID, true
}
