package domain

// OwaspCategory tags a finding with one of the ten OWASP Top 10 (2021)
// web-vulnerability classes.
type OwaspCategory string

const (
	CategoryBrokenAccessControl OwaspCategory = "A01:2021-Broken Access Control"
	CategoryCryptoFailures      OwaspCategory = "A02:2021-Cryptographic Failures"
	CategoryInjection           OwaspCategory = "A03:2021-Injection"
	CategoryInsecureDesign      OwaspCategory = "A04:2021-Insecure Design"
	CategoryMisconfiguration    OwaspCategory = "A05:2021-Security Misconfiguration"
	CategoryVulnComponents      OwaspCategory = "A06:2021-Vulnerable and Outdated Components"
	CategoryAuthFailures        OwaspCategory = "A07:2021-Identification and Authentication Failures"
	CategoryIntegrityFailures   OwaspCategory = "A08:2021-Software and Data Integrity Failures"
	CategoryLoggingFailures     OwaspCategory = "A09:2021-Security Logging and Monitoring Failures"
	CategorySSRF                OwaspCategory = "A10:2021-Server-Side Request Forgery"
)

// AllCategories returns the ten standard categories in canonical order.
func AllCategories() []OwaspCategory {
	return []OwaspCategory{
		CategoryBrokenAccessControl,
		CategoryCryptoFailures,
		CategoryInjection,
		CategoryInsecureDesign,
		CategoryMisconfiguration,
		CategoryVulnComponents,
		CategoryAuthFailures,
		CategoryIntegrityFailures,
		CategoryLoggingFailures,
		CategorySSRF,
	}
}
