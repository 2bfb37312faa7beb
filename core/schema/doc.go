/*
Package schema declares the fields, associations and outputs of an operation.

A Schema is built once, usually at package level, and shared by every
instance of the operation:

	var Signup = schema.New("signup").
		String("email", schema.Options{Aka: []string{"email_address"}}).
		String("password").
		Validates("email", validation.Presence()).
		Outputs(schema.OutputOptions{}, "created_user").
		MustBuild()

Extend starts a child schema from a parent. Declarations on the child never
change the parent, and a redeclared field keeps its original position.

# Fields

Each field names a caster tag (see package typecast). Options control
defaults, groups, mass assignment, typed accessors and error aliases.
The group names all, original and default are reserved.

# Associations

An association is a logical field backed by a key field and, when
polymorphic, a type field:

	Association("user", schema.AssociationOptions{})
	    // fields: user_id, user
	Association("subject", schema.AssociationOptions{Polymorphic: true})
	    // fields: subject_type, subject_id, subject

The key and type fields inherit mass_assignable, field_reader,
field_writer, groups and aka from the association unless InheritOptions
says otherwise.

# Definitions

Schemas can also be written in YAML and compiled with Compile:

	operation: admin_signup
	extends: signup
	fields:
	  - { name: privileges, type: string, default: min }
	outputs:
	  - { names: [created_user], optional: true }

Definitions may extend or copy fields from each other and from schemas
declared in Go.
*/
package schema
