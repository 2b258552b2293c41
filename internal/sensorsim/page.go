package sensorsim

const controlPanel = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>cabinsensor</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 2rem; max-width: 32rem; }
    .row { margin-bottom: 1.25rem; }
    label { display: block; margin-bottom: .25rem; }
    input[type=range] { width: 100%; }
    #link { color: #888; font-size: .85rem; }
  </style>
</head>
<body>
  <h2>Cabin sensor</h2>
  <div class="row">
    <label for="cabin">Cabin noise: <span id="cabin_val">60.0</span> dB</label>
    <input id="cabin" type="range" min="30" max="100" step="0.1" value="60">
  </div>
  <div class="row">
    <label for="speed">Speed: <span id="speed_val">60.0</span> km/h</label>
    <input id="speed" type="range" min="0" max="200" step="0.1" value="60">
  </div>
  <button id="send">Send</button>
  <p id="link">connecting</p>
  <script>
    const cabin = document.getElementById('cabin');
    const speed = document.getElementById('speed');
    const link = document.getElementById('link');
    let dragging = false;
    let timer = null;

    function labels() {
      document.getElementById('cabin_val').textContent = parseFloat(cabin.value).toFixed(1);
      document.getElementById('speed_val').textContent = parseFloat(speed.value).toFixed(1);
    }

    async function send() {
      const body = { cabin_db: parseFloat(cabin.value), speed_kmh: parseFloat(speed.value) };
      try {
        await fetch('/update', { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body) });
      } catch (e) {
        console.warn('update failed', e);
      }
      dragging = false;
    }

    function changed() {
      labels();
      dragging = true;
      clearTimeout(timer);
      timer = setTimeout(send, 200);
    }

    cabin.addEventListener('input', changed);
    speed.addEventListener('input', changed);
    document.getElementById('send').addEventListener('click', () => { clearTimeout(timer); send(); });

    function apply(s) {
      if (dragging) return;
      cabin.value = s.cabin_db;
      speed.value = s.speed_kmh;
      labels();
    }

    function connect() {
      const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
      ws.onopen = () => { link.textContent = 'live'; };
      ws.onmessage = (ev) => apply(JSON.parse(ev.data));
      ws.onclose = () => { link.textContent = 'reconnecting'; setTimeout(connect, 1000); };
    }
    connect();
  </script>
</body>
</html>
`
