package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	config "github.com/mkemboi590/course_catalog/configs"
	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
)

// CheckAndGenerateCertificate issues a completion certificate once an
// enrollment reaches completed status. Safe to call repeatedly; a course is
// certified at most once per user.
func CheckAndGenerateCertificate(enrollment models.Enrollment) {
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return
	}

	var existingCert models.Certificate
	if err := database.DB.Where("user_id = ? AND course_id = ?", enrollment.UserID, enrollment.CourseID).First(&existingCert).Error; err == nil {
		return
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", enrollment.UserID).Error; err != nil {
		log.Printf("🔥 Failed to load user %s for certificate: %v", enrollment.UserID, err)
		return
	}
	var course models.Course
	if err := database.DB.First(&course, "id = ?", enrollment.CourseID).Error; err != nil {
		log.Printf("🔥 Failed to load course %s for certificate: %v", enrollment.CourseID, err)
		return
	}

	htmlData, err := generateCertificateHTML(user.FullName, course.Instructor, course.Title)
	if err != nil {
		log.Printf("🔥 Failed to generate certificate HTML: %v", err)
		return
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		log.Printf("🔥 Failed to generate PDF: %v", err)
		return
	}

	uploadURL, err := uploadToCloudinary(pdfBytes, user.ID.String())
	if err != nil {
		log.Printf("🔥 Failed to upload certificate to Cloudinary: %v", err)
		return
	}

	newCertificate := models.Certificate{
		UserID:      enrollment.UserID,
		CourseID:    enrollment.CourseID,
		CourseTitle: course.Title,
		FileURL:     uploadURL,
		IssuedAt:    time.Now(),
	}

	if err := database.DB.Create(&newCertificate).Error; err != nil {
		log.Printf("🔥 Failed to create certificate record for user %s: %v", enrollment.UserID, err)
	} else {
		log.Printf("✅ Generated and uploaded certificate '%s' for user %s.", course.Title, enrollment.UserID)
	}
}

func generateCertificateHTML(studentName, instructorName, courseTitle string) (string, error) {
	tmpl, err := template.ParseFiles("templates/certificate.html")
	if err != nil {
		return "", err
	}

	data := struct {
		StudentName    string
		InstructorName string
		CourseTitle    string
		CompletionDate string
	}{
		StudentName:    studentName,
		InstructorName: instructorName,
		CourseTitle:    courseTitle,
		CompletionDate: time.Now().Format("January 2, 2006"),
	}

	var renderedHTML bytes.Buffer
	if err := tmpl.Execute(&renderedHTML, data); err != nil {
		return "", err
	}
	return renderedHTML.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadToCloudinary(fileBytes []byte, userID string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("certificates/%s_%s", userID, uuid.New().String()),
		Folder:       "course_catalog_certificates",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
