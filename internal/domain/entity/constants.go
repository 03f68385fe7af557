package entity

// ActionDocumentCreated is the audit action written on intake
const ActionDocumentCreated = "document.created"

// SystemActor is recorded when no human triggered a change
const SystemActor = "system"

// Default document type tag for uploads to the accounting system
const DefaultDocumentType = "Invoice"
