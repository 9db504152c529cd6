package catalog

// Record is an item of a catalog collection.
type Record interface {
	// Identifier is the value matched by GetByID.
	Identifier() string
	// SearchText lists the fields matched by Search.
	SearchText() []string
}

type Skill struct {
	ID          string `json:"id" msgpack:"id"`
	Name        string `json:"name" msgpack:"name"`
	Category    string `json:"category,omitempty" msgpack:"category"`
	Description string `json:"description,omitempty" msgpack:"description"`
}

func (s Skill) Identifier() string { return s.ID }

func (s Skill) SearchText() []string {
	return []string{s.Name, s.Category, s.Description}
}

// Country is keyed by its ISO 3166 alpha-2 code.
type Country struct {
	Code       string `json:"code" msgpack:"code"`
	Name       string `json:"name" msgpack:"name"`
	NativeName string `json:"native_name,omitempty" msgpack:"native_name"`
	Region     string `json:"region,omitempty" msgpack:"region"`
}

func (c Country) Identifier() string { return c.Code }

func (c Country) SearchText() []string {
	return []string{c.Name, c.NativeName, c.Code}
}

type City struct {
	ID          string `json:"id" msgpack:"id"`
	Name        string `json:"name" msgpack:"name"`
	CountryCode string `json:"country_code" msgpack:"country_code"`
	Region      string `json:"region,omitempty" msgpack:"region"`
}

func (c City) Identifier() string { return c.ID }

func (c City) SearchText() []string {
	return []string{c.Name, c.Region}
}

type Occupation struct {
	ID       string `json:"id" msgpack:"id"`
	Title    string `json:"title" msgpack:"title"`
	Industry string `json:"industry,omitempty" msgpack:"industry"`
}

func (o Occupation) Identifier() string { return o.ID }

func (o Occupation) SearchText() []string {
	return []string{o.Title, o.Industry}
}

type Hobby struct {
	ID       string `json:"id" msgpack:"id"`
	Name     string `json:"name" msgpack:"name"`
	Category string `json:"category,omitempty" msgpack:"category"`
}

func (h Hobby) Identifier() string { return h.ID }

func (h Hobby) SearchText() []string {
	return []string{h.Name, h.Category}
}
