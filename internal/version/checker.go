package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
}

// CheckForUpdates checks GitHub for a newer petmem release. It returns the
// newer version string, or "" when already up to date.
func CheckForUpdates() (string, error) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest("GET", "https://api.github.com/repos/a-marczewski/petmem/releases/latest", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "petmem-version-checker")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil // No releases yet
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github api returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", err
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	if IsNewer(Version, latest) {
		return latest, nil
	}

	return "", nil
}

// IsNewer compares two version strings and returns true if latest is newer than current
func IsNewer(current, latest string) bool {
	if latest == "" {
		return false
	}

	cParts := strings.Split(current, ".")
	lParts := strings.Split(latest, ".")

	for i := 0; i < len(cParts) && i < len(lParts); i++ {
		cVal, _ := strconv.Atoi(cParts[i])
		lVal, _ := strconv.Atoi(lParts[i])

		if lVal > cVal {
			return true
		}
		if lVal < cVal {
			return false
		}
	}

	return len(lParts) > len(cParts)
}
