package delivery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var duplicateSlashes = regexp.MustCompile(`/{2,}`)

// objectURL builds the bucket-subdomain public URL for an object. Non-default
// regions get a region segment spliced into the store domain, e.g.
// "s3.amazonaws.com" becomes "s3-eu-west-1.amazonaws.com".
func objectURL(domain, bucket, region, defaultRegion, key string) string {
	host := domain
	if region != "" && region != defaultRegion {
		if idx := strings.Index(domain, "."); idx >= 0 {
			host = domain[:idx] + "-" + region + domain[idx:]
		} else {
			host = domain + "-" + region
		}
	}
	return fmt.Sprintf("https://%s.%s/%s", bucket, host, strings.TrimLeft(key, "/"))
}

// rewriteCDN maps a storage URL onto the configured CDN host by keeping the
// object's path component, optionally stripping an excluded prefix, and
// collapsing duplicate slashes. The rewrite is best effort and never fails
// the upload: on any parse problem the storage URL is returned unchanged.
func rewriteCDN(storageURL, cdnURL, excludePrefix string) string {
	if cdnURL == "" {
		return storageURL
	}

	parsed, err := url.Parse(storageURL)
	if err != nil {
		return storageURL
	}

	path := parsed.Path
	if excludePrefix != "" {
		prefix := "/" + strings.Trim(excludePrefix, "/")
		path = strings.TrimPrefix(path, prefix)
	}
	path = duplicateSlashes.ReplaceAllString(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return strings.TrimRight(cdnURL, "/") + path
}
