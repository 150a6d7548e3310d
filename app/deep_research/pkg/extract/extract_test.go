package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html><head><title>Tendencias del sector gastronómico</title></head>
<body>
<nav>Inicio | Noticias | Contacto</nav>
<article>
<h1>Tendencias del sector gastronómico</h1>
<p>El delivery de comida peruana creció de forma sostenida durante el último año en Lima Metropolitana,
impulsado por aplicaciones móviles y por nuevos hábitos de consumo en familias jóvenes.</p>
<p>Los restaurantes familiares que digitalizaron su carta y aceptan pagos móviles reportan mayores
ventas promedio por pedido y una clientela más fiel que la de los locales que solo atienden en salón.</p>
<p>Los expertos recomiendan medir el costo de adquisición de clientes en cada plataforma y negociar
comisiones por volumen con los agregadores de delivery para proteger el margen del negocio.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestReadabilityFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	text, err := NewReadabilityFetcher(5*time.Second).Fetch(context.Background(), srv.URL+"/nota")
	require.NoError(t, err)
	assert.Contains(t, text, "delivery de comida peruana")
	assert.Contains(t, text, "comisiones por volumen")
}

func TestReadabilityFetcher_Status(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewReadabilityFetcher(0).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 404")
}

func TestReadabilityFetcher_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReadabilityFetcher(time.Second).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
