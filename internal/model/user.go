package model

// Roles carried in the users table and in the JWT "role" claim.
const (
    RoleCustomer = "CUSTOMER"
    RoleOwner    = "OWNER"
)

// User is the subset of the `users` table the booking engine reads to
// check that a booking reference points at a real, active account.
// Accounts are managed elsewhere; this service never writes them.
//
// Fields:
//  ID       – primary key identifier of the user.
//  Email    – unique email address.
//  Role     – name of the role (CUSTOMER or OWNER).
//  IsActive – whether the account may place bookings.
type User struct {
    ID       uint64 // users.id
    Email    string // users.email
    Role     string // users.role
    IsActive bool   // users.is_active
}
