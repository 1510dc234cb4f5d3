package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mkemboi590/course_catalog/models"
	"gorm.io/gorm"
)

// GenerateUniqueStudentID produces an "S" + digits identifier and verifies it
// is not already taken before handing it out.
func GenerateUniqueStudentID(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		id := fmt.Sprintf("S%d%03d", time.Now().UnixMilli(), seededRand.Intn(1000))

		var user models.User
		err := tx.Where("student_id = ?", id).First(&user).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return id, nil
			}
			return "", err
		}
	}
}
