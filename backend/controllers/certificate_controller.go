package controllers

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

type CertificateController struct {
	Certificates *services.CertificateService
}

func NewCertificateController(certs *services.CertificateService) *CertificateController {
	return &CertificateController{Certificates: certs}
}

// GetCertificate godoc
// @Summary Certificate data
// @Description Available only at 100% progress; otherwise 403 with the remaining percentage
// @Tags certificates
// @Produce json
// @Param enrollmentId path int true "Enrollment ID"
// @Success 200 {object} certificate.Certificate
// @Failure 403 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /certificates/{enrollmentId} [get]
func (cc *CertificateController) GetCertificate(c *fiber.Ctx) error {
	studentID, _ := middleware.CurrentUser(c)
	enrollmentID, err := paramID(c, "enrollmentId")
	if err != nil {
		return err
	}
	cert, err := cc.Certificates.Get(c.UserContext(), studentID, enrollmentID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, cert)
}

func (cc *CertificateController) DownloadPDF(c *fiber.Ctx) error {
	studentID, _ := middleware.CurrentUser(c)
	enrollmentID, err := paramID(c, "enrollmentId")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	cert, err := cc.Certificates.WritePDF(c.UserContext(), studentID, enrollmentID, &buf)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=\"certificate-%s.pdf\"", cert.Number))
	return c.Send(buf.Bytes())
}
