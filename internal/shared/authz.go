package shared

// Administrative capabilities guarding Centinela's own API. These are seeded
// alongside the reference data and resolved through the same engine the
// platform uses for its business capabilities.
const (
	CapCatalogView = "centinela.catalog.ver"
	CapCatalogEdit = "centinela.catalog.editar"

	CapGroupsView = "centinela.grupos.ver"
	CapGroupsEdit = "centinela.grupos.editar"

	CapExceptionsView = "centinela.excepciones.ver"
	CapExceptionsEdit = "centinela.excepciones.editar"

	CapAuditView = "centinela.auditoria.ver"
)

// AdminScopes lists every administrative capability of the service itself.
func AdminScopes() []string {
	return []string{
		CapCatalogView,
		CapCatalogEdit,
		CapGroupsView,
		CapGroupsEdit,
		CapExceptionsView,
		CapExceptionsEdit,
		CapAuditView,
	}
}
