package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"talkify/api/internal/apperr"
	"talkify/api/internal/response"
	"talkify/api/internal/service"
)

var avatarFields = []string{"avatar", "file"}

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	maxBytes := h.cfg.Storage.MaxAvatarBytes
	// Leave room for the multipart framing around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+64<<10)
	if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, h.log, apperr.Validation("Image exceeds the maximum allowed size"))
			return
		}
		response.Error(c, h.log, apperr.Wrap(apperr.KindValidation, "An image file is required", err))
		return
	}

	for _, field := range avatarFields {
		file, header, err := c.Request.FormFile(field)
		if err != nil {
			continue
		}
		defer file.Close()

		updated, err := h.services.Avatars.Upload(c.Request.Context(), service.AvatarInput{
			UserID:       user.ID,
			File:         file,
			Size:         header.Size,
			DeclaredType: header.Header.Get("Content-Type"),
		})
		if err != nil {
			response.Error(c, h.log, err)
			return
		}

		response.JSON(c, http.StatusOK, newUserResponse(updated), "Profile picture updated successfully")
		return
	}

	response.Error(c, h.log, apperr.Validation("An image file is required"))
}
