package domain

// Module is the ERP module a governed document class belongs to.
type Module string

const (
	ModulePurchase    Module = "Purchase"
	ModuleContracts   Module = "Contracts"
	ModuleAccounts    Module = "Accounts"
	ModuleSite        Module = "Site"
	ModuleEngineering Module = "Engineering"
)

var knownModules = map[Module]bool{
	ModulePurchase: true, ModuleContracts: true, ModuleAccounts: true,
	ModuleSite: true, ModuleEngineering: true,
}

func (m Module) IsValid() bool {
	return knownModules[m]
}

// EntityType is a governed document type within a module.
type EntityType string

const (
	EntityPurchaseOrder       EntityType = "PO"
	EntityWorkOrder           EntityType = "WO"
	EntityMaterialRequisition EntityType = "MR"
	EntityJournalEntry        EntityType = "JE"
)

var knownEntityTypes = map[EntityType]bool{
	EntityPurchaseOrder: true, EntityWorkOrder: true,
	EntityMaterialRequisition: true, EntityJournalEntry: true,
}

func (e EntityType) IsValid() bool {
	return knownEntityTypes[e]
}

// Role is an identity class that may be required to act at an approval level.
type Role string

const (
	RoleSiteEngineer    Role = "SiteEngineer"
	RoleStoreKeeper     Role = "StoreKeeper"
	RolePurchaseOfficer Role = "PurchaseOfficer"
	RoleProjectManager  Role = "ProjectManager"
	RoleAccountant      Role = "Accountant"
	RoleApprover        Role = "Approver"
	RoleDirector        Role = "Director"
)

var knownRoles = map[Role]bool{
	RoleSiteEngineer: true, RoleStoreKeeper: true, RolePurchaseOfficer: true,
	RoleProjectManager: true, RoleAccountant: true, RoleApprover: true,
	RoleDirector: true,
}

func (r Role) IsValid() bool {
	return knownRoles[r]
}
