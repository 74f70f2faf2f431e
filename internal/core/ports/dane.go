package ports

// DaneResolver maps free-text city/department names to DANE codes.
type DaneResolver interface {
	Lookup(city, department string) (string, bool)
	// ResolveOrDefault never fails; fellBack reports that the fallback code
	// was used.
	ResolveOrDefault(city, department string) (code string, fellBack bool)
	Known(code string) bool
}
