package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"talkify/api/internal/models"
	"talkify/api/internal/response"
)

// memberResponse is how a user appears to other users.
type memberResponse struct {
	ID               string `json:"_id"`
	FullName         string `json:"fullName"`
	ProfilePic       string `json:"profilePic"`
	Bio              string `json:"bio"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
	Location         string `json:"location"`
}

type friendRequestResponse struct {
	ID        string    `json:"_id"`
	Sender    any       `json:"sender"`
	Recipient any       `json:"recipient"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newFriendRequestResponse(req models.FriendRequest) friendRequestResponse {
	return friendRequestResponse{
		ID:        req.ID,
		Sender:    req.SenderID,
		Recipient: req.RecipientID,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
}

// incomingResponses expands the sender, outgoingResponses the recipient.
func incomingResponses(views []models.FriendRequestView) []friendRequestResponse {
	out := make([]friendRequestResponse, 0, len(views))
	for _, view := range views {
		resp := newFriendRequestResponse(view.FriendRequest)
		resp.Sender = view.Counterpart
		out = append(out, resp)
	}
	return out
}

func outgoingResponses(views []models.FriendRequestView) []friendRequestResponse {
	out := make([]friendRequestResponse, 0, len(views))
	for _, view := range views {
		resp := newFriendRequestResponse(view.FriendRequest)
		resp.Recipient = view.Counterpart
		out = append(out, resp)
	}
	return out
}

func (h HandlerSet) Recommendations(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	users, err := h.services.Friends.Recommend(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	recommendations := make([]memberResponse, 0, len(users))
	for _, u := range users {
		recommendations = append(recommendations, memberResponse{
			ID:               u.ID,
			FullName:         u.FullName,
			ProfilePic:       u.ProfilePic,
			Bio:              u.Bio,
			NativeLanguage:   u.NativeLanguage,
			LearningLanguage: u.LearningLanguage,
			Location:         u.Location,
		})
	}

	response.JSON(c, http.StatusOK, gin.H{"recommendations": recommendations}, "Recommendations fetched successfully")
}

func (h HandlerSet) Friends(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	friends, err := h.services.Friends.ListFriends(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	if friends == nil {
		friends = []models.PublicProfile{}
	}

	response.JSON(c, http.StatusOK, gin.H{"friends": friends}, "Friends fetched successfully")
}

func (h HandlerSet) SendFriendRequest(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	req, err := h.services.Friends.SendRequest(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.JSON(c, http.StatusCreated, newFriendRequestResponse(req), "Friend request sent successfully")
}

func (h HandlerSet) AcceptFriendRequest(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	req, err := h.services.Friends.AcceptRequest(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.JSON(c, http.StatusOK, newFriendRequestResponse(req), "Friend request accepted")
}

// FriendRequests returns pending requests addressed to the actor together
// with the actor's own requests that were accepted.
func (h HandlerSet) FriendRequests(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	incoming, err := h.services.Friends.ListIncoming(ctx, user.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}
	accepted, err := h.services.Friends.ListAccepted(ctx, user.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"incomingReqs": incomingResponses(incoming),
		"acceptedReqs": outgoingResponses(accepted),
	}, "Friend requests fetched successfully")
}

func (h HandlerSet) OutgoingFriendRequests(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	outgoing, err := h.services.Friends.ListOutgoing(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.JSON(c, http.StatusOK, outgoingResponses(outgoing), "Outgoing friend requests fetched successfully")
}
