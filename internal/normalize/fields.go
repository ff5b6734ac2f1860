package normalize

// Table maps a canonical field to the wire keys that may carry it, in
// lookup order. Lookup is exact; a key missing from the table is not found.
type Table map[string][]string

var SaleKeys = Table{
	"id":                {"id", "Id", "ID", "saleId", "SaleId"},
	"productId":         {"productId", "ProductId", "productID", "ProductID"},
	"productName":       {"productName", "ProductName", "product", "Product"},
	"quantity":          {"quantity", "Quantity"},
	"unitPrice":         {"unitPrice", "UnitPrice", "price", "Price"},
	"total":             {"totalPrice", "TotalPrice", "totalAmount", "TotalAmount", "total", "Total"},
	"soldBy":            {"soldBy", "SoldBy"},
	"approvedBy":        {"approvedBy", "ApprovedBy", "createdBy", "CreatedBy"},
	"salesType":         {"salesType", "SalesType"},
	"customerName":      {"customerName", "CustomerName"},
	"dateSold":          {"dateSold", "DateSold"},
	"creditDueDate":     {"creditDueDate", "CreditDueDate", "creditSaleDate", "CreditSaleDate"},
	"paymentApprovedBy": {"paymentApprovedBy", "PaymentApprovedBy"},
	"status":            {"status", "Status"},
	"isPaid":            {"isPaid", "IsPaid"},
}

var ProductKeys = Table{
	"id":       {"id", "Id", "ID", "productId", "ProductId"},
	"name":     {"name", "Name"},
	"category": {"category", "Category"},
	"price":    {"price", "Price", "unitPrice", "UnitPrice"},
	"stock":    {"stock", "Stock", "stockQuantity", "StockQuantity"},
	"minStock": {"minStock", "MinStock", "minStockThreshold", "MinStockThreshold"},
}

var UserKeys = Table{
	"id":          {"id", "Id", "ID", "userId", "UserId"},
	"name":        {"name", "Name", "fullName", "FullName"},
	"email":       {"email", "Email"},
	"role":        {"role", "Role"},
	"status":      {"status", "Status", "accountStatus", "AccountStatus"},
	"isActive":    {"isActive", "IsActive"},
	"lastLoginAt": {"lastLoginAt", "LastLoginAt", "lastLogin", "LastLogin"},
}

var LoginKeys = Table{
	"id":    {"id", "Id", "ID", "userId", "UserId"},
	"name":  {"name", "Name", "fullName", "FullName"},
	"email": {"email", "Email"},
	"role":  {"role", "Role"},
	"token": {"token", "Token", "accessToken", "AccessToken"},
}
