package main

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"MarksAPI/internal/middleware"
	"MarksAPI/internal/services"

	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func overallMarksHandler(marksSvc *services.MarksService) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, err := marksSvc.Overall(c.Request().Context())
		if err != nil {
			return err
		}
		return ok(c, http.StatusOK, echo.Map{"data": v.Data, "average": v.Average, "count": v.Count})
	}
}

func fatMarksHandler(marksSvc *services.MarksService) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, err := marksSvc.Fat(c.Request().Context())
		if err != nil {
			return err
		}
		return ok(c, http.StatusOK, echo.Map{"data": v.Data, "average": v.Average, "count": v.Count})
	}
}

func myMarksHandler(marksSvc *services.MarksService) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := middleware.GetClaims(c)
		m, err := marksSvc.Mine(c.Request().Context(), claims.Email)
		if err != nil {
			return err
		}
		return ok(c, http.StatusOK, echo.Map{"data": m})
	}
}

func submitMarksHandler(marksSvc *services.MarksService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in services.MarksInput
		if err := c.Bind(&in); err != nil {
			return errBadBody
		}
		claims := middleware.GetClaims(c)
		owner := services.Owner{UserID: claims.UserID, Email: claims.Email}

		m, created, err := marksSvc.Submit(c.Request().Context(), owner, in)
		if err != nil {
			return err
		}
		if created {
			return ok(c, http.StatusCreated, echo.Map{
				"message": "Marks submitted successfully! You can now view all marks.",
				"data":    m,
			})
		}
		return ok(c, http.StatusOK, echo.Map{"message": "Marks updated successfully!", "data": m})
	}
}

// exportMarksHandler buffers the workbook so a failure still gets a JSON error.
func exportMarksHandler(marksSvc *services.MarksService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var buf bytes.Buffer
		if err := marksSvc.ExportXLSX(c.Request().Context(), &buf); err != nil {
			return err
		}
		name := fmt.Sprintf("marks_%s.xlsx", time.Now().UTC().Format("2006-01-02"))
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func registerMarksRoutes(g *echo.Group, marksSvc *services.MarksService, auth, admin echo.MiddlewareFunc) {
	marks := g.Group("/marks")

	// public
	marks.GET("/overall", overallMarksHandler(marksSvc))
	marks.GET("/fat", fatMarksHandler(marksSvc))

	// authenticated
	marks.GET("/my-marks", myMarksHandler(marksSvc), auth)
	marks.POST("", submitMarksHandler(marksSvc), auth)

	// admin-only
	marks.GET("/export", exportMarksHandler(marksSvc), auth, admin)
}
