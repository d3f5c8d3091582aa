package providers

// CountryLookup resolves ISO 3166-1 alpha-2 codes to display names.
type CountryLookup interface {
	// NameByAlpha2 returns the display name, or a NOT_FOUND AppError for an
	// unrecognized code.
	NameByAlpha2(code string) (string, error)
}
