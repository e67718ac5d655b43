package catalog

// Seed returns the packages the site launched with.
func Seed() []Package {
	return []Package{
		{
			ID:           1,
			Name:         "Aventura Caribeña",
			DurationDays: 7,
			Price:        2500000,
			MaxPeople:    12,
			Includes:     []string{"Alojamiento", "Transporte", "Guía"},
			Image:        "/images/aventura-caribena.jpeg",
			Description:  "Recorre las playas más hermosas del Caribe colombiano, visitando Cartagena, Santa Marta y el Parque Tayrona.",
			Locations:    []string{"Cartagena", "Santa Marta", "Parque Tayrona"},
			PrivateInfo:  "Margen de ganancia: 35%. Proveedores: Hotel Caribe Azul, Transportes del Norte.",
		},
		{
			ID:           2,
			Name:         "Ruta Cafetera",
			DurationDays: 5,
			Price:        1800000,
			MaxPeople:    8,
			Includes:     []string{"Alojamiento", "Desayunos", "Tours"},
			Image:        "/images/ruta-cafetera.webp",
			Description:  "Explora la región cafetera de Colombia, visitando fincas tradicionales y el Valle del Cocora.",
			Locations:    []string{"Salento", "Valle del Cocora", "Armenia"},
			PrivateInfo:  "Margen de ganancia: 40%. Proveedores: Hacienda El Café, Transportes del Eje.",
		},
		{
			ID:           3,
			Name:         "Amazonas Salvaje",
			DurationDays: 6,
			Price:        3200000,
			MaxPeople:    10,
			Includes:     []string{"Vuelos internos", "Alojamiento", "Comidas"},
			Image:        "/images/amazonas-salvaje.jpeg",
			Description:  "Adéntrate en la selva amazónica colombiana y descubre su increíble biodiversidad.",
			Locations:    []string{"Leticia", "Puerto Nariño", "Reserva Natural Tanimboca"},
			PrivateInfo:  "Margen de ganancia: 30%. Proveedores: Amazonas Expeditions, Aerolínea Regional.",
		},
		{
			ID:           4,
			Name:         "Bogotá Cultural",
			DurationDays: 4,
			Price:        1200000,
			MaxPeople:    15,
			Includes:     []string{"Hotel 4 estrellas", "Desayunos", "City tour"},
			Image:        "/images/bogota.jpeg",
			Description:  "Conoce la capital colombiana, sus museos, gastronomía y atractivos culturales.",
			Locations:    []string{"La Candelaria", "Monserrate", "Museo del Oro"},
			PrivateInfo:  "Margen de ganancia: 45%. Proveedores: Hotel Capital, Turismo Bogotá.",
		},
	}
}
