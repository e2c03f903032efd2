package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDisputeHandler_OpenDispute_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil}
	r.POST("/disputes", handler.OpenDispute)

	req, _ := http.NewRequest("POST", "/disputes", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_GetDispute_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil}
	r.GET("/disputes/:id", handler.GetDispute)

	req, _ := http.NewRequest("GET", "/disputes/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_AssignMediator_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil}
	r.POST("/disputes/:id/mediator", handler.AssignMediator)

	req, _ := http.NewRequest("POST", "/disputes/"+uuid.NewString()+"/mediator", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_Resolve_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil}
	r.POST("/disputes/:id/resolve", handler.Resolve)

	req, _ := http.NewRequest("POST", "/disputes/"+uuid.NewString()+"/resolve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_PostMessage_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil}
	r.POST("/disputes/:id/messages", handler.PostMessage)

	req, _ := http.NewRequest("POST", "/disputes/"+uuid.NewString()+"/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_ListMessages_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil}
	r.GET("/disputes/:id/messages", handler.ListMessages)

	req, _ := http.NewRequest("GET", "/disputes/bad/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
