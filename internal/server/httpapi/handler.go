package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/murichu/go-auth-service/internal/common"
	"github.com/murichu/go-auth-service/internal/server/services"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyAccountRequest struct {
	OTP string `json:"otp"`
}

type sendResetOtpRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type tokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

type userDataResponse struct {
	Success  bool     `json:"success"`
	UserData userData `json:"userData"`
}

type userData struct {
	Name              string `json:"name"`
	IsAccountVerified bool   `json:"isAccountVerified"`
}

// setSessionCookie attaches the session token. Outside production the
// cookie is SameSite=Strict; production relaxes to None with Secure so a
// separately hosted frontend can send it.
func (s *HTTPServer) setSessionCookie(c *gin.Context, token string) {
	sameSite := http.SameSiteStrictMode
	if s.production {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(common.TokenCookieName, token, int(s.cookieTTL.Seconds()), "/", "", s.production, true)
}

func (s *HTTPServer) clearSessionCookie(c *gin.Context) {
	sameSite := http.SameSiteStrictMode
	if s.production {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(common.TokenCookieName, "", -1, "/", "", s.production, true)
}

// POST /api/auth/register
func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.service.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	// the session opens as soon as the account exists, even when the
	// welcome mail afterwards fails
	if token != "" {
		s.setSessionCookie(c, token)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tokenResponse{Success: true, Token: token})
}

// POST /api/auth/login
func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setSessionCookie(c, token)
	c.JSON(http.StatusOK, tokenResponse{Success: true, Token: token})
}

// POST /api/auth/logout
func (s *HTTPServer) logout(c *gin.Context) {
	userID, sessionID, ok := sessionFromContext(c)
	if !ok {
		s.respondError(c, common.ErrUnauthenticated)
		return
	}

	if err := s.service.Logout(c.Request.Context(), services.Session{UserID: userID, SessionID: sessionID}); err != nil {
		s.respondError(c, err)
		return
	}

	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, response{Success: true, Message: "logged out"})
}

// POST /api/auth/send-verify-otp
func (s *HTTPServer) sendVerifyOtp(c *gin.Context) {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		s.respondError(c, common.ErrUnauthenticated)
		return
	}

	if err := s.service.SendVerifyOtp(c.Request.Context(), userID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "verification otp sent"})
}

// POST /api/auth/verify-account
func (s *HTTPServer) verifyAccount(c *gin.Context) {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		s.respondError(c, common.ErrUnauthenticated)
		return
	}

	var req verifyAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.service.VerifyEmail(c.Request.Context(), userID, req.OTP); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "account verified"})
}

// GET /api/auth/is-auth
func (s *HTTPServer) isAuth(c *gin.Context) {
	c.JSON(http.StatusOK, response{Success: true})
}

// POST /api/auth/send-reset-otp
func (s *HTTPServer) sendResetOtp(c *gin.Context) {
	var req sendResetOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.service.SendResetOtp(c.Request.Context(), req.Email); err != nil {
		// unknown email is a plain 400 on this endpoint
		if errors.Is(err, common.ErrNotFound) {
			newErrorResponse(c, http.StatusBadRequest, "user not found")
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "reset otp sent"})
}

// POST /api/auth/reset-password
func (s *HTTPServer) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.service.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword, req.ConfirmPassword); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			newErrorResponse(c, http.StatusBadRequest, "user not found")
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "password has been reset"})
}

// GET /api/user/data
func (s *HTTPServer) getUserData(c *gin.Context) {
	userID, _, ok := sessionFromContext(c)
	if !ok {
		s.respondError(c, common.ErrUnauthenticated)
		return
	}

	profile, err := s.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userDataResponse{
		Success:  true,
		UserData: userData{Name: profile.Name, IsAccountVerified: profile.IsAccountVerified},
	})
}
