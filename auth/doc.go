/*
Package auth is for authentication and authorization. It contains database interfaces (DBTenant, DBUser, DBRole), the permission vocabulary and the glue between them.

Tenants, Users, Roles

Every user belongs to exactly one tenant. A role belongs to a tenant and carries a set of permissions. Users are members of any number of roles within their tenant.

Permissions

A permission is a capability token like "workflow:transition". Whether a user holds a permission is decided by the union of the permission sets of all roles the user is a member of within the tenant. There is no permission hierarchy and no implication between tokens.
*/
package auth
