package tables

var Tables = []interface{}{
	&ScrollCache{},
	&RegistrySnapshot{},
}
