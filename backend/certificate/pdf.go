package certificate

import (
	"io"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF writes a single landscape A4 page for cert.
func RenderPDF(cert Certificate, w io.Writer) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate of Completion", true)
	pdf.SetCreator("philosofium", true)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	pdf.SetDrawColor(40, 70, 120)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, pageW-20, pageH-20, "D")

	pdf.SetY(40)
	pdf.SetTextColor(40, 70, 120)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.CellFormat(0, 14, "Certificate of Completion", "", 1, "C", false, 0, "")

	pdf.Ln(10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 12, cert.StudentName, "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "has completed the course", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 10, cert.CourseTitle, "", "C", false)

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, "Instructor: "+cert.TeacherName, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 7, "Completed on "+cert.CompletedAt.Format("January 2, 2006"), "", 1, "C", false, 0, "")

	pdf.SetY(pageH - 30)
	pdf.SetFont("Courier", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 5, "Certificate No. "+cert.Number, "", 1, "C", false, 0, "")

	return pdf.Output(w)
}
