package services

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/utils"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const whatsappBaseURL = "https://wa.me/"

// OrderService собирает сообщение заказа и ссылку wa.me для передачи в мессенджер.
type OrderService struct {
	phone   string
	printer *message.Printer
}

func NewOrderService(whatsappNumber string) *OrderService {
	return &OrderService{
		phone:   utils.NormalizeWhatsapp(whatsappNumber),
		printer: message.NewPrinter(language.BrazilianPortuguese),
	}
}

// FormatKwanza renders an amount as "1.234,50 Kz".
func (s *OrderService) FormatKwanza(value float64) string {
	return s.printer.Sprint(number.Decimal(value, number.Scale(2))) + " Kz"
}

func (s *OrderService) Handoff(lines []models.OrderLine) (*models.OrderHandoff, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: the cart is empty", ErrValidationFailed)
	}
	if s.phone == "" {
		return nil, fmt.Errorf("%w: order number is not set", ErrNotConfigured)
	}

	var items strings.Builder
	total := 0.0
	for i, line := range lines {
		name := strings.TrimSpace(line.Name)
		if name == "" || line.Quantity <= 0 || line.Price < 0 || math.IsNaN(line.Price) || math.IsInf(line.Price, 0) {
			return nil, fmt.Errorf("%w: invalid cart line %d", ErrValidationFailed, i+1)
		}
		lineTotal := line.Price * float64(line.Quantity)
		total += lineTotal
		if i > 0 {
			items.WriteByte('\n')
		}
		fmt.Fprintf(&items, "%dx %s (%s)", line.Quantity, name, s.FormatKwanza(lineTotal))
	}

	text := "Olá, quero fazer um pedido:\n\n" + items.String() + "\n\nTotal: " + s.FormatKwanza(total)
	return &models.OrderHandoff{
		Message: text,
		URL:     s.link(text),
		Total:   total,
	}, nil
}

// WaitlistHandoff builds the message a player sends when a game has no open spots.
func (s *OrderService) WaitlistHandoff(game string) (*models.OrderHandoff, error) {
	game = strings.TrimSpace(game)
	if game == "" {
		return nil, fmt.Errorf("%w: game is required", ErrValidationFailed)
	}
	if s.phone == "" {
		return nil, fmt.Errorf("%w: order number is not set", ErrNotConfigured)
	}
	text := "Olá! Quero ser avisado quando o campeonato de " + game + " estiver disponível novamente."
	return &models.OrderHandoff{Message: text, URL: s.link(text)}, nil
}

func (s *OrderService) link(text string) string {
	// QueryEscape кодирует пробел как "+", мессенджер ожидает %20
	return whatsappBaseURL + s.phone + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
