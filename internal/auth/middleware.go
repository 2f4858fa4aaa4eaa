package auth

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const claimsKey = "auth_claims"

// JWTMiddleware admits requests carrying a valid access token in the
// Authorization header. Refresh tokens are rejected.
func JWTMiddleware(svc *Service) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: claimsKey,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return svc.ParseToken(token, AccessToken)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidToken.Error())
		},
	})
}

func UserIDFromContext(c echo.Context) (int64, bool) {
	claims, ok := c.Get(claimsKey).(*Claims)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

// WithUserID marks c as authenticated for userID.
func WithUserID(c echo.Context, userID int64) {
	c.Set(claimsKey, &Claims{UserID: userID, Type: AccessToken})
}
