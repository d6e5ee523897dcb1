package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/dimitrije/appsync-api/internal/models"
)

// AppFixture builds a test app record for an origin
func AppFixture(origin string) models.AppRecord {
	return models.AppRecord{
		Origin:        origin,
		ManifestPath:  "/manifest.webapp",
		InstallOrigin: origin,
		InstallData:   json.RawMessage(`{"receipt": "test"}`),
	}
}

// AppFixtures builds n test app records with distinct origins
func AppFixtures(n int) []models.AppRecord {
	apps := make([]models.AppRecord, 0, n)
	for i := 1; i <= n; i++ {
		apps = append(apps, AppFixture(fmt.Sprintf("https://app%d.example.com", i)))
	}
	return apps
}
