package domain

type Category string

const (
	CategoryComida    Category = "comida"
	CategoryBebida    Category = "bebida"
	CategoryPorcao    Category = "porcao"
	CategorySobremesa Category = "sobremesa"
)

// DefaultImageURL is used when staff save a product without a picture.
const DefaultImageURL = "https://placehold.co/300x200?text=Produto"

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    Category `json:"category"`
	Stock       int      `json:"stock"`
	ImageURL    string   `json:"image_url"`
}

// StarterCatalog returns the catalog a fresh local installation is seeded
// with, so the menu is never empty on first open.
func StarterCatalog() []Product {
	return []Product{
		{ID: "seed-coxinha", Name: "Coxinha", Description: "Coxinha de frango com catupiry", Price: 8.50, Category: CategoryComida, Stock: 30, ImageURL: DefaultImageURL},
		{ID: "seed-xsalada", Name: "X-Salada", Description: "Hambúrguer, queijo, alface e tomate", Price: 22.00, Category: CategoryComida, Stock: 20, ImageURL: DefaultImageURL},
		{ID: "seed-suco", Name: "Suco", Description: "Suco de laranja natural 500ml", Price: 5.00, Category: CategoryBebida, Stock: 10, ImageURL: DefaultImageURL},
		{ID: "seed-refri", Name: "Refrigerante", Description: "Lata 350ml", Price: 6.00, Category: CategoryBebida, Stock: 48, ImageURL: DefaultImageURL},
		{ID: "seed-batata", Name: "Batata Frita", Description: "Porção grande com cheddar", Price: 28.00, Category: CategoryPorcao, Stock: 15, ImageURL: DefaultImageURL},
		{ID: "seed-pudim", Name: "Pudim", Description: "Fatia de pudim de leite", Price: 9.00, Category: CategorySobremesa, Stock: 12, ImageURL: DefaultImageURL},
	}
}
