package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	figureapp "vestigia/internal/core/figure/service"
	interactionapp "vestigia/internal/core/interaction/service"
	profileapp "vestigia/internal/core/profile/service"
	timelineapp "vestigia/internal/core/timeline/service"
	cachePort "vestigia/internal/ports/cache"
)

var statusByError = []struct {
	err    error
	status int
}{
	{profileapp.ErrInvalidCredentials, http.StatusUnauthorized},
	{profileapp.ErrInvalidToken, http.StatusUnauthorized},
	{profileapp.ErrSessionRevoked, http.StatusUnauthorized},
	{profileapp.ErrInvalidState, http.StatusBadRequest},
	{profileapp.ErrInvalidInput, http.StatusBadRequest},
	{profileapp.ErrUnsupportedAvatar, http.StatusBadRequest},
	{profileapp.ErrAvatarTooLarge, http.StatusRequestEntityTooLarge},
	{profileapp.ErrEmailTaken, http.StatusConflict},
	{profileapp.ErrProviderDisabled, http.StatusNotImplemented},
	{profileapp.ErrStorageDisabled, http.StatusNotImplemented},
	{profileapp.ErrProfileNotFound, http.StatusNotFound},
	{figureapp.ErrFigureNotFound, http.StatusNotFound},
	{figureapp.ErrEmptySearch, http.StatusBadRequest},
	{timelineapp.ErrPostNotFound, http.StatusNotFound},
	{timelineapp.ErrEmptySearch, http.StatusBadRequest},
	{interactionapp.ErrPostNotFound, http.StatusNotFound},
	{interactionapp.ErrCommentNotFound, http.StatusNotFound},
	{interactionapp.ErrEmptyComment, http.StatusBadRequest},
	{interactionapp.ErrCommentTooLong, http.StatusBadRequest},
	{interactionapp.ErrInvalidUser, http.StatusBadRequest},
	{interactionapp.ErrForbidden, http.StatusForbidden},
	{cachePort.ErrMiss, http.StatusNotFound},
}

// respondError maps a use-case error onto a status code. Unknown errors are
// 500 and their text is not leaked.
func respondError(c *gin.Context, err error) {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
