package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"playtube/api/internal/api"
	"playtube/api/internal/apperr"
)

func Recovery(log zerolog.Logger, includeStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", RequestIDFrom(c)).
					Msg("panic recovered")
				api.AbortFail(c, apperr.Wrap(apperr.Internal, "internal server error", fmt.Errorf("%v", r)), includeStack)
			}
		}()
		c.Next()
	}
}
