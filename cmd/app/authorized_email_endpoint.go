package main

import (
	"net/http"

	"MarksAPI/internal/middleware"
	"MarksAPI/internal/services"

	"github.com/labstack/echo/v4"
)

type addAuthorizedEmailRequest struct {
	Email string `json:"email"`
}

func listAuthorizedEmailsHandler(gate *services.AuthorizedEmailService) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := gate.List(c.Request().Context())
		if err != nil {
			return err
		}
		return ok(c, http.StatusOK, echo.Map{"data": list, "count": len(list)})
	}
}

func addAuthorizedEmailHandler(gate *services.AuthorizedEmailService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req addAuthorizedEmailRequest
		if err := c.Bind(&req); err != nil {
			return errBadBody
		}
		claims := middleware.GetClaims(c)
		e, err := gate.Add(c.Request().Context(), req.Email, claims.Email)
		if err != nil {
			return err
		}
		return ok(c, http.StatusCreated, echo.Map{"message": "Email authorized successfully", "data": e})
	}
}

func removeAuthorizedEmailHandler(gate *services.AuthorizedEmailService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := gate.Remove(c.Request().Context(), c.Param("id")); err != nil {
			return err
		}
		return ok(c, http.StatusOK, echo.Map{"message": "Authorized email removed successfully"})
	}
}

func registerAuthorizedEmailRoutes(g *echo.Group, gate *services.AuthorizedEmailService, auth, admin echo.MiddlewareFunc) {
	emails := g.Group("/authorized-emails")

	emails.GET("", listAuthorizedEmailsHandler(gate))
	emails.POST("", addAuthorizedEmailHandler(gate), auth, admin)
	emails.DELETE("/:id", removeAuthorizedEmailHandler(gate), auth, admin)
}
