// Package i18n holds the UI message catalogs (English and French).
package i18n

import (
	"context"
	"strings"
)

// DefaultLang is used when nothing else matches.
const DefaultLang = "en"

type ctxKey struct{}

var catalogs = map[string]map[string]string{
	"en": {
		// validation
		"required":             "Required",
		"invalid_email":        "Invalid email address",
		"invalid_date":         "Invalid date (expected YYYY-MM-DD)",
		"invalid_number":       "Invalid number",
		"too_short":            "Too short",
		"out_of_range":         "Out of range",
		"must_be_positive":     "Must be greater than zero",
		"must_not_be_negative": "Must not be negative",
		// notifications
		"invoice_created":       "Invoice created successfully",
		"invoice_create_failed": "Failed to create invoice",
		"invoice_deleted":       "Invoice deleted successfully",
		"invoice_delete_failed": "Failed to delete invoice",
		"status_updated":        "Invoice status updated",
		"status_update_failed":  "Failed to update status",
		"invalid_status":        "Unknown invoice status",
		"fix_errors":            "Please fill in all required fields",
		"load_failed":           "Failed to load invoices",
		"invoice_not_found":     "Invoice not found",
		"forbidden":             "You do not have access to this invoice",
		"invalid_credentials":   "Invalid email or password",
		"email_taken":           "An account with this email already exists",
		"auth_failed":           "Authentication failed, please try again",
		"signed_out":            "You have been signed out",
		"welcome":               "Welcome!",
		// labels
		"app_title":        "Invoice Generator",
		"nav_invoices":     "Invoices",
		"nav_new_invoice":  "New Invoice",
		"sign_in":          "Sign In",
		"sign_up":          "Sign Up",
		"sign_out":         "Sign Out",
		"email":            "Email",
		"password":         "Password",
		"no_account":       "Don't have an account? Sign up",
		"have_account":     "Already have an account? Sign in",
		"client_name":      "Client Name",
		"client_email":     "Client Email",
		"client_address":   "Client Address",
		"issue_date":       "Issue Date",
		"due_date":         "Due Date",
		"tax_rate":         "Tax Rate (%)",
		"notes":            "Notes",
		"notes_terms":      "Notes / Terms",
		"items":            "Line Items",
		"item_name":        "Item Name",
		"item_description": "Description",
		"quantity":         "Quantity",
		"unit_price":       "Unit Price",
		"rate":             "Rate",
		"amount":           "Amount",
		"add_item":         "Add Item",
		"remove_item":      "Remove",
		"subtotal":         "Subtotal",
		"tax":              "Tax",
		"total":            "Total",
		"create_invoice":   "Create Invoice",
		"reset":            "Reset",
		"invoice":          "Invoice",
		"bill_to":          "Bill To",
		"status":           "Status",
		"all_statuses":     "All statuses",
		"search":           "Search",
		"filter":           "Filter",
		"view":             "View",
		"delete":           "Delete",
		"confirm_delete":   "Are you sure you want to delete this invoice?",
		"print":            "Print",
		"back":             "Back",
		"no_invoices":      "No invoices yet",
		"no_invoices_hint": "Create your first invoice to get started",
		"thank_you":        "Thank you for your business!",
		"generated_on":     "Invoice generated on",
		"update_status":    "Update",
		"previous":         "Previous",
		"next":             "Next",
		"status_draft":     "Draft",
		"status_sent":      "Sent",
		"status_paid":      "Paid",
		"status_overdue":   "Overdue",
	},
	"fr": {
		"required":             "Requis",
		"invalid_email":        "Adresse e-mail invalide",
		"invalid_date":         "Date invalide (AAAA-MM-JJ attendu)",
		"invalid_number":       "Nombre invalide",
		"too_short":            "Trop court",
		"out_of_range":         "Hors limites",
		"must_be_positive":     "Doit être supérieur à zéro",
		"must_not_be_negative": "Ne doit pas être négatif",

		"invoice_created":       "Facture créée avec succès",
		"invoice_create_failed": "Échec de la création de la facture",
		"invoice_deleted":       "Facture supprimée",
		"invoice_delete_failed": "Échec de la suppression de la facture",
		"status_updated":        "Statut de la facture mis à jour",
		"status_update_failed":  "Échec de la mise à jour du statut",
		"invalid_status":        "Statut de facture inconnu",
		"fix_errors":            "Veuillez remplir tous les champs obligatoires",
		"load_failed":           "Impossible de charger les factures",
		"invoice_not_found":     "Facture introuvable",
		"forbidden":             "Vous n'avez pas accès à cette facture",
		"invalid_credentials":   "E-mail ou mot de passe invalide",
		"email_taken":           "Un compte existe déjà avec cet e-mail",
		"auth_failed":           "Échec de l'authentification, veuillez réessayer",
		"signed_out":            "Vous êtes déconnecté",
		"welcome":               "Bienvenue !",

		"app_title":        "Générateur de factures",
		"nav_invoices":     "Factures",
		"nav_new_invoice":  "Nouvelle facture",
		"sign_in":          "Connexion",
		"sign_up":          "Inscription",
		"sign_out":         "Déconnexion",
		"email":            "E-mail",
		"password":         "Mot de passe",
		"no_account":       "Pas encore de compte ? Inscrivez-vous",
		"have_account":     "Déjà un compte ? Connectez-vous",
		"client_name":      "Nom du client",
		"client_email":     "E-mail du client",
		"client_address":   "Adresse du client",
		"issue_date":       "Date d'émission",
		"due_date":         "Date d'échéance",
		"tax_rate":         "Taux de taxe (%)",
		"notes":            "Notes",
		"notes_terms":      "Notes / Conditions",
		"items":            "Lignes",
		"item_name":        "Article",
		"item_description": "Description",
		"quantity":         "Quantité",
		"unit_price":       "Prix unitaire",
		"rate":             "Prix",
		"amount":           "Montant",
		"add_item":         "Ajouter une ligne",
		"remove_item":      "Retirer",
		"subtotal":         "Sous-total",
		"tax":              "Taxe",
		"total":            "Total",
		"create_invoice":   "Créer la facture",
		"reset":            "Réinitialiser",
		"invoice":          "Facture",
		"bill_to":          "Facturer à",
		"status":           "Statut",
		"all_statuses":     "Tous les statuts",
		"search":           "Rechercher",
		"filter":           "Filtrer",
		"view":             "Voir",
		"delete":           "Supprimer",
		"confirm_delete":   "Voulez-vous vraiment supprimer cette facture ?",
		"print":            "Imprimer",
		"back":             "Retour",
		"no_invoices":      "Aucune facture pour le moment",
		"no_invoices_hint": "Créez votre première facture pour commencer",
		"thank_you":        "Merci pour votre confiance !",
		"generated_on":     "Facture générée le",
		"update_status":    "Mettre à jour",
		"previous":         "Précédent",
		"next":             "Suivant",
		"status_draft":     "Brouillon",
		"status_sent":      "Envoyée",
		"status_paid":      "Payée",
		"status_overdue":   "En retard",
	},
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := catalogs[lang]
	return ok
}

// T translates code; unknown languages use the default catalog and unknown
// codes are returned unchanged.
func T(lang, code string) string {
	if cat, ok := catalogs[lang]; ok {
		if msg, ok := cat[code]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[DefaultLang][code]; ok {
		return msg
	}
	return code
}

// DetectLanguage picks the first supported language of an Accept-Language header.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		if Supported(base) {
			return base
		}
	}
	return DefaultLang
}

// WithLang stores the request language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// LangFromContext returns the request language or DefaultLang.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(ctxKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}
